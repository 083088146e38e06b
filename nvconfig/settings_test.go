package nvconfig

import "testing"

func TestSettingsRoundTrip(t *testing.T) {
	want := Settings{Protocol: 2, Legacy: true, WireLEDs: 0x05}
	data, err := want.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var got Settings
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSettingsRejectsBadMagic(t *testing.T) {
	data := make([]byte, settingsSize)
	var s Settings
	if err := s.UnmarshalBinary(data); err == nil {
		t.Fatalf("all-zero buffer (wrong magic) should fail to unmarshal")
	}
}

func TestSettingsRejectsVersionMismatch(t *testing.T) {
	s := Settings{Protocol: 1}
	data, _ := s.MarshalBinary()
	data[1] = CurrentVersion + 1

	var got Settings
	if err := got.UnmarshalBinary(data); err == nil {
		t.Fatalf("a version bump should invalidate old records rather than silently misreading them")
	}
}

func TestSettingsRejectsShortBuffer(t *testing.T) {
	var s Settings
	if err := s.UnmarshalBinary(make([]byte, settingsSize-1)); err != ErrInvalidSize {
		t.Fatalf("got %v, want ErrInvalidSize", err)
	}
}
