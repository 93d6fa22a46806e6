package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"retailworks/internal/deploy"
	"retailworks/internal/rollback"
	"retailworks/internal/ui"
)

var (
	rollbackVersion string
	rollbackList    bool
	rollbackForce   bool
	rollbackDryRun  bool
	rollbackKeep    int
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <schema>",
	Short: "Restore a schema from an earlier backup clone",
	Long: `Restore a schema from one of its timestamped backup clones.

The current state is cloned to a fresh backup before restoring, so a
rollback can itself be rolled back. Use --list to see the available
backups, and --version to pick one; the newest is used otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

var backupCmd = &cobra.Command{
	Use:   "backup [schema...]",
	Short: "Create backup clones of warehouse schemas",
	Long: `Clone schemas into timestamped backup schemas.

With no arguments every managed schema is backed up.`,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(backupCmd)

	rollbackCmd.Flags().StringVarP(&rollbackVersion, "version", "v", "", "backup version to restore from (default newest)")
	rollbackCmd.Flags().BoolVarP(&rollbackList, "list", "l", false, "list available backups and exit")
	rollbackCmd.Flags().BoolVarP(&rollbackForce, "force", "f", false, "skip the confirmation prompt")
	rollbackCmd.Flags().BoolVarP(&rollbackDryRun, "dry-run", "d", false, "show what would happen without executing")
	rollbackCmd.Flags().IntVar(&rollbackKeep, "prune", 0, "after restoring, keep only this many backups (0 keeps all)")
}

func newRollbackManager(cmd *cobra.Command, dryRun bool) (context.Context, *rollback.Manager, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	env, err := resolveEnvironment(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	svc, err := connectSnowflake(cfg, env)
	if err != nil {
		return nil, nil, nil, err
	}

	manager := rollback.NewManager(svc, rollback.Config{
		Environment:  env.Name,
		Database:     env.Database,
		SchemaSuffix: env.SchemaSuffix,
		DryRun:       dryRun,
	})
	return ctx, manager, func() { svc.Close() }, nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	schema := args[0]

	ctx, manager, closeSvc, err := newRollbackManager(cmd, rollbackDryRun)
	if err != nil {
		return err
	}
	defer closeSvc()

	backups, err := manager.ListBackups(ctx, schema)
	if err != nil {
		return err
	}

	if rollbackList {
		if len(backups) == 0 {
			ui.ShowInfo(fmt.Sprintf("No backups found for %s", schema))
			return nil
		}
		ui.ShowInfo(fmt.Sprintf("Backups for %s (newest first):", schema))
		for _, name := range backups {
			fmt.Println("  " + name)
		}
		return nil
	}

	target := rollbackVersion
	if target == "" {
		if len(backups) == 0 {
			return fmt.Errorf("no backups available for %s", schema)
		}
		target = backups[0]
	}

	ui.ShowHeader(fmt.Sprintf("RetailWorks Rollback - %s from %s", schema, target))
	if rollbackDryRun {
		ui.ShowWarning("Running in dry-run mode, no changes will be applied")
	} else if !rollbackForce {
		ok, err := ui.Confirm(fmt.Sprintf("Drop %s and restore it from %s?", strings.ToUpper(schema), target))
		if err != nil || !ok {
			ui.ShowWarning("Rollback cancelled")
			return nil
		}
	}

	if err := manager.Restore(ctx, schema, target); err != nil {
		return err
	}

	missing, err := manager.SmokeTest(ctx, []string{schema})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema %s missing after restore", missing[0])
	}

	if err := manager.RecordHistory(ctx, rollback.HistoryEntry{
		Version: target,
		Type:    "ROLLBACK",
		Status:  "COMPLETED",
		Notes:   fmt.Sprintf("Restored %s from %s", schema, target),
	}); err != nil {
		ui.ShowWarning(fmt.Sprintf("Could not record deployment history: %v", err))
	}

	if rollbackKeep > 0 {
		dropped, err := manager.PruneBackups(ctx, schema, rollbackKeep)
		if err != nil {
			ui.ShowWarning(fmt.Sprintf("Backup pruning failed: %v", err))
		} else if dropped > 0 {
			ui.ShowInfo(fmt.Sprintf("Pruned %d old backup(s)", dropped))
		}
	}

	ui.ShowSuccess(fmt.Sprintf("Rollback of %s completed", schema))
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, manager, closeSvc, err := newRollbackManager(cmd, false)
	if err != nil {
		return err
	}
	defer closeSvc()

	schemas := args
	if len(schemas) == 0 {
		schemas = deploy.ManagedSchemas
	}

	refs, err := manager.CreateBackups(ctx, schemas)
	for _, ref := range refs {
		ui.ShowSuccess(fmt.Sprintf("%s -> %s", ref.Schema, ref.BackupSchema))
	}
	if err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Backed up %d schema(s)", len(refs)))
	return nil
}
