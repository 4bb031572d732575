package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

type runner interface {
	Run(ctx context.Context) (int, error)
}

// Service runs both directions of one federation trigger. A failure in
// one direction does not prevent the other from running.
type Service struct {
	download runner
	upload   runner
	logger   logging.Logger
}

// NewService accepts nil for a disabled direction.
func NewService(download *Downloader, upload *Uploader, logger logging.Logger) *Service {
	s := &Service{logger: logger.With("module", "federation")}
	if download != nil {
		s.download = download
	}
	if upload != nil {
		s.upload = upload
	}
	return s
}

func (s *Service) Run(ctx context.Context) error {
	var errs []error

	if s.download != nil {
		n, err := s.download.Run(ctx)
		if err != nil {
			s.logger.Error(ctx, "download failed", "batches", n, "error", err)
			errs = append(errs, fmt.Errorf("download: %w", err))
		}
	} else {
		s.logger.Info(ctx, "download disabled")
	}

	if s.upload != nil {
		n, err := s.upload.Run(ctx)
		if err != nil {
			s.logger.Error(ctx, "upload failed", "submissions", n, "error", err)
			errs = append(errs, fmt.Errorf("upload: %w", err))
		}
	} else {
		s.logger.Info(ctx, "upload disabled")
	}

	return errors.Join(errs...)
}
