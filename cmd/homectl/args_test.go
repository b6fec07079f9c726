package main

import (
	"errors"
	"testing"
	"time"

	"smarthome_sync/internal/models"
	"smarthome_sync/internal/schedule"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		args []string
		want schedule.Spec
	}{
		{[]string{"daily", "07:15"}, schedule.Spec{Frequency: schedule.Daily, Hour: 7, Minute: 15}},
		{[]string{"weekly", "sun", "9:30"}, schedule.Spec{Frequency: schedule.Weekly, Hour: 9, Minute: 30, Weekday: time.Sunday}},
		{[]string{"Monthly", "22", "18:00"}, schedule.Spec{Frequency: schedule.Monthly, Hour: 18, DayOfMonth: 22}},
	}
	for _, tc := range cases {
		got, err := parseSchedule(tc.args)
		if err != nil {
			t.Fatalf("parseSchedule(%v): %v", tc.args, err)
		}
		if got != tc.want {
			t.Errorf("parseSchedule(%v) = %+v, want %+v", tc.args, got, tc.want)
		}
	}

	bad := [][]string{
		{"daily"},
		{"daily", "mon", "07:00"},
		{"weekly", "07:00"},
		{"monthly", "32", "07:00"},
		{"monthly", "x", "07:00"},
		{"hourly", "07:00"},
		{"daily", "25:00"},
	}
	for _, args := range bad {
		if _, err := parseSchedule(args); err == nil {
			t.Errorf("parseSchedule(%v) succeeded, want error", args)
		}
	}
	if _, err := parseSchedule([]string{"weekly", "07:00"}); !errors.Is(err, errUsage) {
		t.Errorf("missing weekday err = %v, want usage", err)
	}
}

func TestParseEquipmentOp(t *testing.T) {
	op, err := parseEquipmentOp("+device:3")
	if err != nil || !op.add || op.key != (models.TargetKey{Type: models.TargetDevice, ID: 3}) {
		t.Fatalf("+device:3 = %+v, %v", op, err)
	}
	op, err = parseEquipmentOp("-Light:5")
	if err != nil || op.add || op.key != (models.TargetKey{Type: models.TargetLight, ID: 5}) {
		t.Fatalf("-Light:5 = %+v, %v", op, err)
	}
	for _, s := range []string{"device:3", "+", "+device", "+fan:1", "+light:0", "-light:x"} {
		if _, err := parseEquipmentOp(s); err == nil {
			t.Errorf("parseEquipmentOp(%q) succeeded, want error", s)
		}
	}
}

func TestParseOnOff(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "ON": true, "1": true, "off": false, "false": false} {
		got, err := parseOnOff(in)
		if err != nil || got != want {
			t.Errorf("parseOnOff(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("parseOnOff(maybe) succeeded")
	}
}
