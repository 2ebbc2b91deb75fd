// Package export persists run artifacts. The pipeline itself returns values;
// everything on disk or in object storage goes through this explicit step.
package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"propsim/internal/jsonutil"
	"propsim/internal/report"
	"propsim/internal/types"
)

// S3Config enables optional upload of artifacts to an S3-compatible bucket.
type S3Config struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Exporter writes run artifacts to a local directory and, when configured,
// mirrors them to object storage.
type Exporter struct {
	OutDir string
	S3     S3Config
	Log    *log.Logger
}

func (e *Exporter) logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.Default()
}

// Export writes output.json (the final structured result), state.json (the
// full audited pipeline state), and memo.pdf.
func (e *Exporter) Export(ctx context.Context, result *types.FinalResult, st *types.State) error {
	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return err
	}
	files := map[string]func(string) error{
		"output.json": func(path string) error { return writeJSON(path, result) },
		"state.json":  func(path string) error { return writeJSON(path, st.Snapshot()) },
		"memo.pdf": func(path string) error {
			return report.WriteMemoPDF(result, "Strategic Review: "+st.Scenario().Scenario, path)
		},
	}
	for name, write := range files {
		path := filepath.Join(e.OutDir, name)
		if err := write(path); err != nil {
			return fmt.Errorf("export: %s: %w", name, err)
		}
		e.logger().Printf("export: wrote %s", path)
	}
	if e.S3.Enabled {
		if err := e.upload(ctx, "output.json", "state.json", "memo.pdf"); err != nil {
			return fmt.Errorf("export: upload: %w", err)
		}
	}
	return nil
}

func (e *Exporter) upload(ctx context.Context, names ...string) error {
	cli, err := minio.New(e.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(e.S3.AccessKey, e.S3.SecretKey, ""),
		Secure: e.S3.UseSSL,
		Region: e.S3.Region,
	})
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(e.OutDir, name)
		if _, err := cli.FPutObject(ctx, e.S3.Bucket, name, path, minio.PutObjectOptions{}); err != nil {
			return err
		}
		e.logger().Printf("export: uploaded %s to s3://%s/%s", name, e.S3.Bucket, name)
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := jsonutil.MarshalIndentNoEscape(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
