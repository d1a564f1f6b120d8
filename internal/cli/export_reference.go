package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dupcheck/internal/csvexport"
	"dupcheck/internal/domain"
	"dupcheck/internal/port"
	s3storage "dupcheck/internal/storage/s3"
)

func newExportReferenceCmd(root *rootOptions) *cobra.Command {
	var out, storeFile string

	cmd := &cobra.Command{
		Use:   "export-reference",
		Short: "Dump the reference store as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(root, func(a *app) error {
				if storeFile != "" && !a.useStoreFile(storeFile) {
					return fmt.Errorf("%s is not a SQLite store file", storeFile)
				}
				return exportReference(cmd, a, out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file or s3:// URI (default: stdout)")
	cmd.Flags().StringVar(&storeFile, "store", "", "read from this SQLite store file instead of the configured store")
	return cmd
}

func exportReference(cmd *cobra.Command, a *app, out string) error {
	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("opening reference store: %w", err)
	}
	records, err := store.LoadReference(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading reference: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(csvexport.BOM)
	w := csvexport.NewWriter(&buf)
	if err := w.WriteReference(records); err != nil {
		return fmt.Errorf("writing reference: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing reference: %w", err)
	}

	switch bucket, key, isS3 := s3storage.ParseURI(out); {
	case out == "":
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	case isS3:
		storage, err := a.objectStorage()
		if err != nil {
			return fmt.Errorf("initializing S3 client: %w", err)
		}
		if _, err := storage.Upload(cmd.Context(), port.UploadInput{
			Bucket:      bucket,
			Key:         key,
			Body:        &buf,
			ContentType: domain.ContentTypes[domain.FileTypeCSV],
		}); err != nil {
			a.logger.Error("reference upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
			return fmt.Errorf("%s: %w", out, domain.ErrUploadFailed)
		}
	default:
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}
	a.logger.Info("reference exported", zap.Int("rows", len(records)), zap.String("destination", out))
	return nil
}
