package query

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
)

// Migrations is the ordered schema history. Append new entries; never edit
// an applied one.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202601010001_init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Project{},
					&model.Application{},
					&model.ChatMessage{},
					&model.OutboxItem{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("outbox_items", "chat_messages", "applications", "projects", "users")
			},
		},
		{
			ID: "202601010002_one_pending_application",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_one_pending
					ON applications (project_id, applicant_id)
					WHERE status = 'pending' AND deleted_at IS NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_applications_one_pending`).Error
			},
		},
		{
			ID: "202601010003_outbox_due_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_items_due
					ON outbox_items (next_attempt_at)
					WHERE status = 'pending'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_outbox_items_due`).Error
			},
		},
		{
			ID: "202601020001_user_profile",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				for _, col := range []string{
					"title", "location", "experience", "industry", "education",
					"github_url", "linkedin_url", "bio", "skills",
				} {
					if err := tx.Migrator().DropColumn(&model.User{}, col); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, Migrations())
	if err := m.Migrate(); err != nil {
		return err
	}
	klog.Info("database migrated")
	return nil
}
