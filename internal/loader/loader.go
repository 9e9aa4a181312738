// Package loader fetches the collection document, validates it and returns
// the records that passed validation.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/metrics"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

const DefaultTimeout = 10 * time.Second

type Result struct {
	Records  []models.DatasetRecord    `json:"datasets"`
	Rejected []schema.Rejected         `json:"rejected,omitempty"`
	Warnings []schema.FieldError       `json:"warnings,omitempty"`
	Metadata models.CollectionMetadata `json:"metadata"`
}

type Options struct {
	Source Source
	// Timeout bounds a single fetch. Defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Loader struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
}

func New(opts Options) (*Loader, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("collection source is required")
	}
	l := &Loader{source: opts.Source, timeout: opts.Timeout, logger: opts.Logger}
	if l.timeout <= 0 {
		l.timeout = DefaultTimeout
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	return l, nil
}

// Load runs one fetch-validate-partition pass. Failures are always
// *errors.Error values carrying their recoverability.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	ctx = logging.WithCycleID(ctx, uuid.NewString())
	start := time.Now()

	res, err := l.load(ctx)
	metrics.LoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LoadsTotal.WithLabelValues(string(internalerrors.GetCode(err))).Inc()
		l.logger.WarnContext(ctx, "collection load failed",
			"source", l.source.String(),
			"error", err.Error(),
			"recoverable", internalerrors.IsRecoverable(err),
		)
		return nil, err
	}
	metrics.LoadsTotal.WithLabelValues("success").Inc()
	l.logger.InfoContext(ctx, "collection loaded",
		"source", l.source.String(),
		"datasets", len(res.Records),
		"rejected", len(res.Rejected),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (l *Loader) load(ctx context.Context) (*Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	data, err := l.source.Fetch(fetchCtx)
	timedOut := errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		if timedOut {
			return nil, internalerrors.New(internalerrors.ErrTimeout,
				fmt.Sprintf("collection fetch timed out after %s", l.timeout), err)
		}
		if ctx.Err() != nil {
			return nil, internalerrors.New(internalerrors.ErrUnknown, "collection fetch cancelled", ctx.Err())
		}
		return nil, Classify(err)
	}

	raw, err := schema.DecodeDocument(data)
	if err != nil {
		return nil, internalerrors.New(internalerrors.ErrParse, "collection is not valid JSON", err)
	}

	verdict := schema.ValidateCollection(raw)
	if !verdict.IsValid {
		return nil, internalerrors.NewRecoverable(internalerrors.ErrValidation,
			"invalid collection: "+strings.Join(verdict.ErrorStrings(), "; "), false, nil)
	}
	for _, w := range verdict.Warnings {
		l.logger.WarnContext(ctx, "collection warning", "field", w.Field, "message", w.Message)
	}

	parts := schema.PartitionRecords(schema.Entries(raw))
	for _, rej := range parts.Rejected {
		errs := make([]string, 0, len(rej.Errors))
		for _, e := range rej.Errors {
			errs = append(errs, e.String())
		}
		l.logger.WarnContext(ctx, "dataset rejected", "index", rej.Index, "id", rej.ID, "errors", errs)
	}
	metrics.RejectedRecordsTotal.Add(float64(len(parts.Rejected)))

	if len(parts.Valid) == 0 {
		return nil, internalerrors.NewRecoverable(internalerrors.ErrValidation,
			"collection contains no valid datasets", true, nil)
	}

	warnings := make([]schema.FieldError, 0, len(verdict.Warnings)+len(parts.Warnings))
	warnings = append(warnings, verdict.Warnings...)
	warnings = append(warnings, parts.Warnings...)

	return &Result{
		Records:  parts.Valid,
		Rejected: parts.Rejected,
		Warnings: warnings,
		Metadata: schema.Metadata(raw),
	}, nil
}

// FallbackRecords is the built-in minimal set shown when nothing else can be
// loaded. Each call returns a fresh slice.
func FallbackRecords() []models.DatasetRecord {
	return []models.DatasetRecord{{
		ID:              "us",
		CountryName:     "United States",
		CountryCode:     "US",
		PostalCodeCount: 41692,
		Region:          "North America",
		Status:          models.DatasetStatusActive,
		SampleFileName:  "us-postal-codes-sample.csv",
	}}
}
