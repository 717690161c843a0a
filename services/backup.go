package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

// BackupService snapshots the full ledger (accounts plus entries) to object
// storage. Snapshots are audit artifacts; restore is a manual operation.
type BackupService struct {
	context.DefaultService

	ledgerSvc *LedgerService
	minioSvc  *MinIOService
}

const BACKUP_SVC = "backup_svc"

type ledgerSnapshot struct {
	TakenAt  time.Time            `json:"taken_at"`
	Accounts []model.SolarAccount `json:"accounts"`
	Entries  []model.LedgerEntry  `json:"entries"`
}

func (svc BackupService) Id() string {
	return BACKUP_SVC
}

func (svc *BackupService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *BackupService) Start() error {
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.minioSvc = svc.Service(MINIO_SVC).(*MinIOService)
	return nil
}

// SnapshotLedger serializes the ledger and uploads it under a timestamped
// object key. The backup log row is the local index of what exists remotely.
func (svc *BackupService) SnapshotLedger() (*dto.BackupResponse, error) {
	accounts, entries, err := svc.ledgerSvc.Snapshot()
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}

	snapshot := ledgerSnapshot{
		TakenAt:  time.Now().UTC(),
		Accounts: accounts,
		Entries:  entries,
	}

	payload, err := sonic.Marshal(snapshot)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to serialize ledger snapshot")
	}

	objectKey := fmt.Sprintf("ledger/%s.json", snapshot.TakenAt.Format("2006-01-02T15-04-05Z"))

	if _, err := svc.minioSvc.UploadObject(objectKey, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Backup upload failed")
	}

	if err := svc.ledgerSvc.RecordBackup(objectKey, len(entries), int64(len(payload))); err != nil {
		log.WithError(err).Warn("Backup uploaded but log row failed")
	}

	log.WithFields(log.Fields{
		"object_key": objectKey,
		"entries":    len(entries),
		"bytes":      len(payload),
	}).Info("Ledger snapshot uploaded")

	return &dto.BackupResponse{
		ObjectKey:  objectKey,
		EntryCount: len(entries),
		SizeBytes:  int64(len(payload)),
		CreatedAt:  snapshot.TakenAt,
	}, nil
}
