package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"smarthome_sync/internal/models"
	"smarthome_sync/internal/schedule"
)

var errUsage = errors.New("usage")

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// parseSchedule reads "daily HH:MM", "weekly DAY HH:MM" or "monthly DOM HH:MM".
func parseSchedule(args []string) (schedule.Spec, error) {
	if len(args) < 2 {
		return schedule.Spec{}, errUsage
	}
	freq, err := schedule.ParseFrequency(args[0])
	if err != nil {
		return schedule.Spec{}, err
	}
	spec := schedule.Spec{Frequency: freq}
	clock := args[len(args)-1]

	switch freq {
	case schedule.Daily:
		if len(args) != 2 {
			return schedule.Spec{}, errUsage
		}
	case schedule.Weekly:
		if len(args) != 3 {
			return schedule.Spec{}, errUsage
		}
		if spec.Weekday, err = schedule.ParseWeekday(args[1]); err != nil {
			return schedule.Spec{}, err
		}
	case schedule.Monthly:
		if len(args) != 3 {
			return schedule.Spec{}, errUsage
		}
		if spec.DayOfMonth, err = strconv.Atoi(args[1]); err != nil {
			return schedule.Spec{}, fmt.Errorf("%w: day of month %q", schedule.ErrInvalidSchedule, args[1])
		}
	}

	if spec.Hour, spec.Minute, err = schedule.ParseClock(clock); err != nil {
		return schedule.Spec{}, err
	}
	return spec, spec.Validate()
}

// equipmentOp is one "+type:id" (select) or "-type:id" (deselect) argument.
type equipmentOp struct {
	add bool
	key models.TargetKey
}

func parseEquipmentOp(s string) (equipmentOp, error) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return equipmentOp{}, fmt.Errorf("expected +type:id or -type:id, got %q", s)
	}
	kind, rawID, ok := strings.Cut(s[1:], ":")
	if !ok {
		return equipmentOp{}, fmt.Errorf("expected +type:id or -type:id, got %q", s)
	}
	typ := models.TargetType(strings.ToLower(kind))
	if typ != models.TargetDevice && typ != models.TargetLight {
		return equipmentOp{}, fmt.Errorf("unknown target type %q", kind)
	}
	id, err := parseID(rawID)
	if err != nil {
		return equipmentOp{}, err
	}
	return equipmentOp{add: s[0] == '+', key: models.TargetKey{Type: typ, ID: id}}, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
