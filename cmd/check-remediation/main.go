package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"remediation-engine/common/database"
	"remediation-engine/common/logger"
	"remediation-engine/internal/config"
	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"
	"remediation-engine/internal/service"

	"go.uber.org/zap"
)

// 检查已保存的 remediation 数据：
//   - 房间缺少照片
//   - 设备行数量与风机数量不一致 / 风机数量越界
//   - 房间名标记行缺失或重复
func main() {
	var jobID = flag.String("job", "", "Only check this job id")
	var limit = flag.Int("limit", 200, "Max number of jobs to scan")
	var asJSON = flag.Bool("json", false, "Print findings as JSON")
	var verbose = flag.Bool("v", false, "Verbose logging to stderr")
	flag.Parse()

	cfg := config.Load()
	zl, err := logger.NewCLILogger(*verbose)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	repo := repository.NewPostgresJobsRepo(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var jobs []*domain.Job
	if *jobID != "" {
		job, err := repo.GetJob(ctx, *jobID)
		if err != nil {
			log.Fatalf("Failed to load job %s: %v", *jobID, err)
		}
		jobs = []*domain.Job{job}
	} else {
		jobs, err = repo.ListJobsWithRemediation(ctx, *limit)
		if err != nil {
			log.Fatalf("Failed to list jobs: %v", err)
		}
	}

	type jobReport struct {
		JobID    string                `json:"job_id"`
		Status   string                `json:"status"`
		Findings []service.RoomFinding `json:"findings"`
	}
	reports := make([]jobReport, 0, len(jobs))
	for _, job := range jobs {
		findings := service.AuditPersistedRooms(job.RemediationData.Rooms)
		if len(findings) == 0 {
			continue
		}
		reports = append(reports, jobReport{JobID: job.JobID, Status: string(job.RemediationStatus), Findings: findings})
	}
	zl.Info("Remediation check finished", zap.Int("jobs_scanned", len(jobs)), zap.Int("jobs_with_findings", len(reports)))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
	} else {
		fmt.Printf("Scanned %d jobs, %d with findings\n\n", len(jobs), len(reports))
		fmt.Printf("%-38s %-12s %-24s %s\n", "job_id", "status", "room", "violation")
		fmt.Println(strings.Repeat("-", 100))
		for _, r := range reports {
			for _, f := range r.Findings {
				for _, v := range f.Violations {
					fmt.Printf("%-38s %-12s %-24s %s\n", r.JobID, r.Status, f.RoomTitle, v)
				}
			}
		}
	}

	if len(reports) > 0 {
		os.Exit(1)
	}
}
