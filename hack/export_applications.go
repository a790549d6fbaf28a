// Usage: COBREW_DEBUG_CONFIG_PATH=${PWD}/etc/debug-config.yaml go run hack/export_applications.go
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/query"
)

func main() {
	db := query.GetDB()

	// Include withdrawn applications
	var apps []model.Application
	if err := db.Preload("Project").Preload("Applicant").Unscoped().
		Order("created_at DESC, id DESC").Find(&apps).Error; err != nil {
		panic(fmt.Errorf("failed to fetch applications: %w", err))
	}

	file, err := os.Create("applications_export.csv")
	if err != nil {
		panic(fmt.Errorf("failed to create CSV file: %w", err))
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"ID", "ProjectID", "ProjectTitle", "ApplicantID", "ApplicantName", "ApplicantEmail",
		"Status", "CreatedAt", "UpdatedAt", "DecisionHours", "Deleted",
	}
	if err := writer.Write(headers); err != nil {
		panic(fmt.Errorf("failed to write CSV header: %w", err))
	}

	for i := range apps {
		if err := writer.Write(applicationToCSVRecord(&apps[i])); err != nil {
			panic(fmt.Errorf("failed to write CSV record: %w", err))
		}
	}

	fmt.Printf("Successfully exported %d applications to applications_export.csv\n", len(apps))
}

func applicationToCSVRecord(app *model.Application) []string {
	title, name, email := "", model.AnonymousUserName, ""
	if app.Project != nil {
		title = app.Project.Title
	}
	if app.Applicant != nil {
		name = model.DisplayName(app.Applicant.FirstName, app.Applicant.LastName)
		email = app.Applicant.Email
	}
	decisionHours := ""
	if app.Status.IsDecision() {
		decisionHours = fmt.Sprintf("%.1f", app.UpdatedAt.Sub(app.CreatedAt).Hours())
	}
	return []string{
		app.ID.String(),
		app.ProjectID.String(),
		title,
		app.ApplicantID.String(),
		name,
		email,
		string(app.Status),
		app.CreatedAt.Format(time.RFC3339),
		app.UpdatedAt.Format(time.RFC3339),
		decisionHours,
		fmt.Sprintf("%t", app.DeletedAt.Valid),
	}
}
