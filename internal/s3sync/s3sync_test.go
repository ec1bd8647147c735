package s3sync

import "testing"

func TestObjectKeyForUsesBaseName(t *testing.T) {
	got := objectKeyFor("/var/data/gfs025/store/temperature_2m_0.om")
	want := "temperature_2m_0.om"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
