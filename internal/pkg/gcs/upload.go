package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"

	"cloud.google.com/go/storage"
)

type GCSClient struct {
	Client     *storage.Client
	BucketName string
	FolderName string
}

type GcsInterface interface {
	UploadReport(ctx context.Context, report *models.ReconciliationReport) (string, error)
	Close(ctx context.Context)
}

// NewGCSClient is a variable so the reconciler can be exercised without Google credentials.
var NewGCSClient = func(ctx context.Context, bucketName, folderName string) (GcsInterface, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if folderName == "" {
		folderName = consts.GCSFolderName
	}
	return &GCSClient{
		Client:     client,
		BucketName: bucketName,
		FolderName: folderName,
	}, nil
}

func (g *GCSClient) Close(ctx context.Context) {
	if g.Client == nil {
		return
	}
	if err := g.Client.Close(); err != nil {
		logger.CtxError(ctx, log_messages.ErrorClosingGCSClient, err)
		return
	}
	logger.CtxInfo(ctx, log_messages.GCSClientClosedSuccessfully)
}

// ReportObjectName is <folder>/<started unix>_<run id>.json.
func ReportObjectName(folder string, report *models.ReconciliationReport) string {
	return fmt.Sprintf("%s/%d_%s.json", folder, report.StartedAt.Unix(), report.RunID)
}

// UploadReport writes the report as a new object and returns its name. Existing objects are never overwritten.
func (g *GCSClient) UploadReport(ctx context.Context, report *models.ReconciliationReport) (string, error) {
	objectName := ReportObjectName(g.FolderName, report)
	object := g.Client.Bucket(g.BucketName).Object(objectName)
	jsonData, err := json.Marshal(report)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorMarshallingJSON, err)
		return "", err
	}
	writer := object.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.Metadata = map[string]string{
		"runId":       report.RunID,
		"groupsDrift": fmt.Sprintf("%d", report.GroupsWithDrift),
	}
	if _, err = writer.Write(jsonData); err != nil {
		logger.CtxError(ctx, log_messages.ErrorUploadingToGCSBucket, err, slog.String("objectName", objectName))
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		logger.CtxError(ctx, log_messages.ErrorClosingGCSWriter, err, slog.String("objectName", objectName))
		return "", err
	}
	logger.CtxInfo(ctx, log_messages.UploadedToGCSBucket,
		slog.String("bucket", g.BucketName), slog.String("objectName", objectName))
	return objectName, nil
}
