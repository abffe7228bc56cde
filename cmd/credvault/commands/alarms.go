package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/incident"
	"github.com/systmms/credvault/internal/registry"
)

// NewAlarmsCommand creates the parent 'alarms' command
func NewAlarmsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarms",
		Short: "Inspect and resolve continuity alarms",
		Long: `Continuity alarms are raised when a rotation rollback fails and the
active credential may be unusable. An alarm stays open until an operator
verifies provider access and resolves it.

Examples:
  credvault alarms list
  credvault alarms resolve CONT-20260830T120000Z-ab12cd34 --notes "re-issued key manually"`,
	}

	cmd.AddCommand(
		newAlarmsListCommand(cfg),
		newAlarmsResolveCommand(cfg),
	)

	return cmd
}

func newAlarmsListCommand(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List continuity alarms (open by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlarmsList(cmd, cfg, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include resolved alarms")

	return cmd
}

func runAlarmsList(cmd *cobra.Command, cfg *config.Config, all bool) error {
	manager, err := alarmManager(cfg)
	if err != nil {
		return err
	}

	var alarms []*incident.Alarm
	if all {
		alarms, err = manager.List()
	} else {
		alarms, err = manager.Open()
	}
	if err != nil {
		return err
	}

	if len(alarms) == 0 {
		cfg.Logger.Info("No alarms")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s %-20s %-16s %-10s %s\n", "ID", "RAISED", "PROVIDER", "STATUS", "REASON")
	for _, alarm := range alarms {
		fmt.Fprintf(out, "%-36s %-20s %-16s %-10s %s\n",
			alarm.ID, formatTime(alarm.RaisedAt), alarm.Provider, alarm.Status, alarm.Reason)
	}

	return nil
}

func newAlarmsResolveCommand(cfg *config.Config) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <alarm-id>",
		Short: "Resolve a continuity alarm after manual verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlarmsResolve(cfg, args[0], notes)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "What was done to restore access")

	return cmd
}

func runAlarmsResolve(cfg *config.Config, id, notes string) error {
	manager, err := alarmManager(cfg)
	if err != nil {
		return err
	}

	alarm, err := manager.Get(id)
	if err != nil {
		return err
	}

	if err := manager.Resolve(id, notes); err != nil {
		return err
	}
	registry.ClearContinuityAlarm(alarm.Provider)

	cfg.Logger.Info("Alarm %s resolved", id)
	return nil
}

func alarmManager(cfg *config.Config) (*incident.Manager, error) {
	def, err := config.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	return incident.NewManager(def.Alarms.Dir), nil
}
