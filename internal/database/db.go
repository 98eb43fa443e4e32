package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&ErrorIncident{},
		&RemediationAttempt{},
		&ApprovalRecord{},
		&AuditLog{},
		&PRReview{},
		&AlertRule{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// DefaultAlertRules returns the rule set seeded on first boot
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Name:              "critical_error_spike",
			Condition:         AlertConditionCriticalErrors,
			Threshold:         3,
			TimeWindowMinutes: 5,
			Severity:          SeverityCritical,
			Channels:          StringList{"alerts-critical"},
			Enabled:           true,
		},
		{
			Name:              "high_error_rate",
			Condition:         AlertConditionErrorRate,
			Threshold:         10,
			TimeWindowMinutes: 10,
			Severity:          SeverityHigh,
			Channels:          StringList{"alerts-high"},
			Enabled:           true,
		},
		{
			Name:              "service_error_spike",
			Condition:         AlertConditionServiceErrors,
			Threshold:         5,
			TimeWindowMinutes: 15,
			Severity:          SeverityMedium,
			Channels:          StringList{"alerts-medium"},
			Enabled:           true,
		},
		{
			Name:              "remediation_failure_rate",
			Condition:         AlertConditionRemediationFailures,
			Threshold:         3,
			TimeWindowMinutes: 30,
			Severity:          SeverityHigh,
			Channels:          StringList{"alerts-remediation"},
			Enabled:           true,
		},
	}
}

// SeedDefaultAlertRules creates the default alert rules if they don't
// exist. Existing rows are left untouched so operator edits survive
// restarts.
func SeedDefaultAlertRules(db *gorm.DB) error {
	for _, rule := range DefaultAlertRules() {
		var existing AlertRule
		err := db.Where("name = ?", rule.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check alert rule %s: %w", rule.Name, err)
		}
		if err := db.Create(&rule).Error; err != nil {
			return fmt.Errorf("failed to seed alert rule %s: %w", rule.Name, err)
		}
		log.Printf("Seeded default alert rule: %s", rule.Name)
	}
	return nil
}

// Close closes the underlying database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
