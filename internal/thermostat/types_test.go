package thermostat

import (
	"errors"
	"testing"
)

func TestModeValid(t *testing.T) {
	cases := []struct {
		m    Mode
		want bool
	}{
		{ModeOff, true},
		{ModeHeat, true},
		{ModeCool, true},
		{ModeAuto, true},
		{Mode(4), false},
		{Mode(-1), false},
	}

	for _, tc := range cases {
		if got := tc.m.Valid(); got != tc.want {
			t.Fatalf("Mode(%d).Valid()=%v want %v", tc.m, got, tc.want)
		}
	}
}

func TestModeCodes(t *testing.T) {
	// device API codes
	if ModeOff != 0 || ModeHeat != 1 || ModeCool != 2 || ModeAuto != 3 {
		t.Fatalf("unexpected mode codes: off=%d heat=%d cool=%d auto=%d", ModeOff, ModeHeat, ModeCool, ModeAuto)
	}
	if FanAuto != 0 || FanOn != 1 {
		t.Fatalf("unexpected fan codes: auto=%d on=%d", FanAuto, FanOn)
	}
}

func TestModeString_Table(t *testing.T) {
	cases := []struct {
		name string
		in   Mode
		want string
	}{
		{"off", ModeOff, "off"},
		{"heat", ModeHeat, "heat"},
		{"cool", ModeCool, "cool"},
		{"auto", ModeAuto, "auto"},
		{"unknown (out of range)", Mode(999), "unknown"},
		{"unknown (negative)", Mode(-1), "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.String(); got != tc.want {
				t.Fatalf("Mode(%d).String()=%q want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseMode_Table(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Mode
		wantErr bool
	}{
		{"off", "off", ModeOff, false},
		{"heat", "heat", ModeHeat, false},
		{"cool", "cool", ModeCool, false},
		{"auto", "auto", ModeAuto, false},
		{"invalid", "nope", ModeOff, true},
		{"empty", "", ModeOff, true},
		{"case sensitive", "HEAT", ModeOff, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidMode) {
					t.Fatalf("ParseMode(%q) err=%v, want ErrInvalidMode", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseMode(%q)=%v want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseFanMode_Table(t *testing.T) {
	cases := []struct {
		in      string
		want    FanMode
		wantErr bool
	}{
		{"auto", FanAuto, false},
		{"off", FanAuto, false},
		{"on", FanOn, false},
		{"high", FanAuto, true},
		{"", FanAuto, true},
	}

	for _, tc := range cases {
		got, err := ParseFanMode(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidFanMode) {
				t.Fatalf("ParseFanMode(%q) err=%v, want ErrInvalidFanMode", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseFanMode(%q)=%v,%v want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestFanModeString(t *testing.T) {
	if FanAuto.String() != "auto" || FanOn.String() != "on" || FanMode(7).String() != "unknown" {
		t.Fatalf("unexpected fan strings: %q %q %q", FanAuto, FanOn, FanMode(7))
	}
	if FanMode(7).Valid() {
		t.Fatal("FanMode(7) should be invalid")
	}
}
