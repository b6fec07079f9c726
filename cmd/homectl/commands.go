package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"smarthome_sync/internal/config"
	"smarthome_sync/internal/feed"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/optimistic"
	"smarthome_sync/internal/reconcile"
	"smarthome_sync/internal/schedule"
	"smarthome_sync/internal/service"
	"smarthome_sync/internal/session"
)

type app struct {
	cfg      *config.Config
	svc      *service.Service
	sessions *session.Store
	log      *logger.Logger
	out      io.Writer
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "devices":
		return a.listDevices(ctx)
	case "lights":
		return a.listLights(ctx)
	case "automations":
		return a.listAutomations(ctx)
	case "power", "swing":
		return a.deviceSwitch(ctx, cmd, args)
	case "temp", "fan":
		return a.deviceNumber(ctx, cmd, args)
	case "mode":
		return a.deviceMode(ctx, args)
	case "toggle":
		return a.toggle(ctx, args)
	case "level":
		return a.level(ctx, args)
	case "schedule":
		return a.schedule(ctx, args)
	case "equipment":
		return a.equipment(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "watch":
		return a.watch(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) listDevices(ctx context.Context) error {
	devices, err := a.svc.Devices.Load(ctx)
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tPOWER\tMODE\tTEMP\tFAN\tSWING\tRANGE")
	for _, d := range devices {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%d-%d\n",
			d.ID, d.Name, onOff(d.Power), d.Mode, d.Temperature, d.FanSpeed, onOff(d.Swing), d.MinTemp, d.MaxTemp)
	}
	return w.Flush()
}

func (a *app) listLights(ctx context.Context) error {
	lights, err := a.svc.Lights.Load(ctx)
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tLEVEL")
	for _, l := range lights {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", l.ID, l.Name, onOff(l.IsActive), l.Level)
	}
	return w.Flush()
}

func (a *app) listAutomations(ctx context.Context) error {
	list, err := a.svc.Automations.Load(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tNEXT RUN")
	for _, au := range list {
		desc := au.Schedule
		if spec, err := schedule.Decode(au.Schedule); err == nil {
			desc = spec.Describe()
		}
		next, _ := a.svc.Automations.NextRun(au.ID, now)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", au.ID, au.Name, desc, formatTime(next))
	}
	return w.Flush()
}

func (a *app) loadDevice(ctx context.Context, args []string, n int) (int, error) {
	if len(args) != n {
		return 0, errUsage
	}
	if _, err := a.svc.Devices.Load(ctx); err != nil {
		return 0, err
	}
	return parseID(args[0])
}

func (a *app) deviceSwitch(ctx context.Context, cmd string, args []string) error {
	id, err := a.loadDevice(ctx, args, 2)
	if err != nil {
		return err
	}
	on, err := parseOnOff(args[1])
	if err != nil {
		return err
	}
	var res optimistic.Result
	if cmd == "power" {
		res = a.svc.Devices.SetPower(ctx, id, on)
	} else {
		res = a.svc.Devices.SetSwing(ctx, id, on)
	}
	return a.reportDevice(id, cmd, res)
}

func (a *app) deviceNumber(ctx context.Context, cmd string, args []string) error {
	id, err := a.loadDevice(ctx, args, 2)
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid number %q", args[1])
	}
	var res optimistic.Result
	if cmd == "temp" {
		res = a.svc.Devices.SetTemperature(ctx, id, v)
	} else {
		res = a.svc.Devices.SetFanSpeed(ctx, id, v)
	}
	return a.reportDevice(id, cmd, res)
}

func (a *app) deviceMode(ctx context.Context, args []string) error {
	id, err := a.loadDevice(ctx, args, 2)
	if err != nil {
		return err
	}
	res := a.svc.Devices.SetMode(ctx, id, models.Mode(strings.ToUpper(args[1])))
	return a.reportDevice(id, "mode", res)
}

func (a *app) reportDevice(id int, what string, res optimistic.Result) error {
	if d, ok := a.svc.Devices.Device(id); ok {
		fmt.Fprintf(a.out, "%s %s: %s (power %s, %s %d°C, fan %d, swing %s)\n",
			d.Name, what, res.Outcome, onOff(d.Power), d.Mode, d.Temperature, d.FanSpeed, onOff(d.Swing))
	}
	return resultErr(res)
}

func (a *app) loadLight(ctx context.Context, args []string, n int) (int, error) {
	if len(args) != n {
		return 0, errUsage
	}
	if _, err := a.svc.Lights.Load(ctx); err != nil {
		return 0, err
	}
	return parseID(args[0])
}

func (a *app) toggle(ctx context.Context, args []string) error {
	id, err := a.loadLight(ctx, args, 1)
	if err != nil {
		return err
	}
	res := a.svc.Lights.Toggle(ctx, id)
	return a.reportLight(id, "toggle", res)
}

func (a *app) level(ctx context.Context, args []string) error {
	id, err := a.loadLight(ctx, args, 2)
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid level %q", args[1])
	}
	res := a.svc.Lights.SetLevel(ctx, id, v)
	if err := a.reportLight(id, "level", res.Level); err != nil {
		return err
	}
	if res.Activate != nil {
		return a.reportLight(id, "activate", *res.Activate)
	}
	return nil
}

func (a *app) reportLight(id int, what string, res optimistic.Result) error {
	if l, ok := a.svc.Lights.Light(id); ok {
		fmt.Fprintf(a.out, "%s %s: %s (%s, level %d)\n", l.Name, what, res.Outcome, onOff(l.IsActive), l.Level)
	}
	return resultErr(res)
}

func resultErr(res optimistic.Result) error {
	if res.Confirmed() {
		return nil
	}
	if res.Err == nil {
		return fmt.Errorf("mutation %s", res.Outcome)
	}
	return fmt.Errorf("mutation %s: %w", res.Outcome, res.Err)
}

func (a *app) schedule(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := a.svc.Automations.Load(ctx); err != nil {
		return err
	}

	if len(args) > 1 {
		spec, err := parseSchedule(args[1:])
		if err != nil {
			return err
		}
		if _, err := a.svc.Automations.SaveSchedule(ctx, id, spec); err != nil {
			return err
		}
	}

	spec, err := a.svc.Automations.OpenSchedule(id)
	if err != nil {
		return err
	}
	au, _ := a.svc.Automations.Automation(id)
	next, _ := a.svc.Automations.NextRun(id, time.Now())
	fmt.Fprintf(a.out, "%s: %s [%s], next run %s\n", au.Name, spec.Describe(), au.Schedule, formatTime(next))
	return nil
}

func (a *app) equipment(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ops := make([]equipmentOp, 0, len(args)-1)
	for _, s := range args[1:] {
		op, err := parseEquipmentOp(s)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	editor, err := a.svc.Automations.OpenEquipmentEditor(ctx, id)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.add {
			editor.Select(models.Target{TargetKey: op.key})
		} else {
			editor.Deselect(op.key)
		}
	}

	var saveErr error
	if editor.HasChanges() {
		var res reconcile.Result
		res, saveErr = a.svc.Automations.SaveEquipment(ctx, editor)
		fmt.Fprintf(a.out, "added %d, removed %d, failed %d\n", len(res.Added), len(res.Removed), len(res.Failed))
	}

	w := a.table()
	fmt.Fprintln(w, "ASSOCIATION\tTARGET")
	for _, as := range editor.Snapshot() {
		fmt.Fprintf(w, "%d\t%s:%d\n", as.ID, as.Type, as.TargetKey.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var partial *reconcile.PartialFailureError
	if errors.As(saveErr, &partial) {
		for _, f := range partial.Failed {
			fmt.Fprintln(a.out, "failed:", f.String())
		}
	}
	return saveErr
}

func (a *app) history(ctx context.Context, args []string) error {
	if a.svc.History == nil {
		return errors.New("history needs a journal")
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	from := fs.String("from", "", "start (RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD')")
	to := fs.String("to", "", "end, inclusive; a date covers the whole day")
	outcome := fs.String("outcome", "", "confirmed | rolled_back | indeterminate")
	kind := fs.String("kind", "", "device | light")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	f := service.HistoryFilter{Outcome: *outcome, EntityKind: *kind}
	var err error
	if f.From, err = service.ParseFilterTime(*from, false); err != nil {
		return err
	}
	if f.To, err = service.ParseFilterTime(*to, true); err != nil {
		return err
	}

	events, err := a.svc.History.List(ctx, f)
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "TIME\tENTITY\tATTRIBUTE\tOUTCOME\tERROR")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\t%s\n",
			ev.OccurredAt.Local().Format(time.DateTime), ev.EntityKind, ev.EntityID, ev.Attribute, ev.Outcome, ev.Error)
	}
	return w.Flush()
}

// watch prints every entity change pushed by the backend until ctx ends.
func (a *app) watch(ctx context.Context) error {
	if _, err := a.svc.Devices.Load(ctx); err != nil {
		return err
	}
	if _, err := a.svc.Lights.Load(ctx); err != nil {
		return err
	}
	devices, lights := a.svc.DeviceController(), a.svc.LightController()
	devices.Store().OnChange(func(_ int, d models.Device) {
		fmt.Fprintf(a.out, "device %d %s: power %s, %s %d°C\n", d.ID, d.Name, onOff(d.Power), d.Mode, d.Temperature)
	})
	lights.Store().OnChange(func(_ int, l models.Light) {
		fmt.Fprintf(a.out, "light %d %s: %s, level %d\n", l.ID, l.Name, onOff(l.IsActive), l.Level)
	})

	w, err := feed.NewWatcher(a.cfg.API.BaseURL, a.sessions, devices, lights, a.log)
	if err != nil {
		return err
	}
	stats, err := w.Run(ctx)
	fmt.Fprintf(a.out, "applied %d, skipped %d, unknown %d\n", stats.Applied, stats.Skipped, stats.Unknown)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
