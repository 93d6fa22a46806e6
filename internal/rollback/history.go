package rollback

import (
	"context"
	"fmt"

	"retailworks/pkg/errors"
)

// historyDDL creates the deployment history table on first use.
const historyDDL = `CREATE TABLE IF NOT EXISTS %s.PUBLIC.DEPLOYMENT_HISTORY (
	DEPLOYMENT_ID NUMBER AUTOINCREMENT PRIMARY KEY,
	ENVIRONMENT VARCHAR(20),
	VERSION VARCHAR(50),
	DEPLOYMENT_TYPE VARCHAR(20),
	DEPLOYED_BY VARCHAR(100),
	DEPLOYMENT_DATE TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
	STATUS VARCHAR(20),
	NOTES TEXT
)`

// HistoryEntry describes one deployment or rollback event.
type HistoryEntry struct {
	Version string
	Type    string
	Status  string
	Notes   string
}

// RecordHistory appends an entry to DEPLOYMENT_HISTORY, creating the
// table if needed. DEPLOYED_BY is resolved by Snowflake's USER().
func (m *Manager) RecordHistory(ctx context.Context, entry HistoryEntry) error {
	if m.cfg.DryRun {
		return nil
	}

	if err := m.exec.ExecuteStatement(ctx, fmt.Sprintf(historyDDL, m.cfg.Database)); err != nil {
		return errors.Wrap(err, errors.ErrCodeRollbackFailed,
			"Failed to create deployment history table")
	}

	stmt := fmt.Sprintf(`INSERT INTO %s.PUBLIC.DEPLOYMENT_HISTORY
		(ENVIRONMENT, VERSION, DEPLOYMENT_TYPE, DEPLOYED_BY, STATUS, NOTES)
		SELECT ?, ?, ?, USER(), ?, ?`, m.cfg.Database)

	err := m.exec.ExecuteWithArgs(ctx, stmt,
		m.cfg.Environment, entry.Version, entry.Type, entry.Status, entry.Notes)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRollbackFailed,
			"Failed to record deployment history")
	}
	return nil
}
