package backup

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"Lifeline/pkg/config"
	"Lifeline/pkg/logger"
)

// StartBackupScheduler runs ExecuteBackup on the configured cron schedule.
// The emergency store is append-only, so a file-level snapshot is consistent
// enough for recovery.
func StartBackupScheduler() (*cron.Cron, error) {
	c := cron.New()

	schedule := config.GlobalConfig.BackupSchedule
	_, err := c.AddFunc(schedule, func() {
		if err := ExecuteBackup(); err != nil {
			logger.Warn("backup failed", zap.Error(err))
		} else {
			logger.Info("backup completed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}

// ExecuteBackup snapshots the emergency database per the configured driver.
func ExecuteBackup() error {
	stamp := time.Now().Format("20060102_150405")
	switch config.GlobalConfig.DBDriver {
	case "sqlite":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("emergencies_%s.db", stamp))
		return backupSQLite(config.GlobalConfig.DSN, dst)
	case "mysql":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("emergencies_%s.sql", stamp))
		return backupMySQL(config.GlobalConfig.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB_DRIVER for backup: %s", config.GlobalConfig.DBDriver)
	}
}

func backupSQLite(src string, dst string) error {
	if err := ensureDir(dst); err != nil {
		return err
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source database: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("error copying data: %w", err)
	}

	logger.Info("sqlite backup completed", zap.String("path", dst))
	return nil
}

func backupMySQL(dsn, dst string) error {
	if err := ensureDir(dst); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	defer out.Close()

	cmd := exec.Command("mysqldump", dsn)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}

	logger.Info("mysql backup completed", zap.String("path", dst))
	return nil
}

func ensureDir(dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		if err := os.MkdirAll(backupDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	return nil
}
