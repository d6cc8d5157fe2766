package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"modelswap/internal/config"
	"modelswap/internal/formats"
	"modelswap/internal/logger"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonInvalidFormat   = "invalid_format"
	ReasonTooLarge        = "too_large"
	ReasonInvalidFilename = "invalid_filename"
	ReasonUnreadable      = "unreadable"
)

// Candidate is an uploaded file that passed intake.
type Candidate struct {
	Header       *multipart.FileHeader
	OriginalName string
	Filename     string
	Source       formats.Format
	Size         int64
	MimeType     string
}

type Rejection struct {
	Reason  string
	Message string
}

// Admission is the result of intake: the files to process and the per-file
// rejections collected on the way.
type Admission struct {
	Target     formats.Format
	Files      []Candidate
	Rejections []Rejection
	Dropped    int
}

type IntakeValidator struct {
	limits   config.LimitsConfig
	validate *validator.Validate
}

func NewIntakeValidator(limits config.LimitsConfig) *IntakeValidator {
	v := validator.New()
	_ = v.RegisterValidation("meshformat", func(fl validator.FieldLevel) bool {
		return formats.IsSupported(fl.Field().String())
	})
	return &IntakeValidator{limits: limits, validate: v}
}

// Validate applies the request-level checks, then the count policy, then the
// per-file checks. Only request-level failures return an error.
func (v *IntakeValidator) Validate(files []*multipart.FileHeader, outputFormat string) (*Admission, error) {
	if len(files) == 0 {
		logger.Warn("Upload attempt without files")
		return nil, ErrNoFilesProvided
	}
	if files[0] == nil || files[0].Filename == "" {
		logger.Warn("Upload attempt with empty files")
		return nil, ErrNoFilesSelected
	}

	admission := &Admission{}
	if max := v.limits.MaxFilesPerRequest; len(files) > max {
		logger.WithFields(logrus.Fields{
			"received":  len(files),
			"processed": max,
		}).Warn("Multiple files received, only processing the first")
		admission.Dropped = len(files) - max
		files = files[:max]
	}

	if err := v.validate.Var(outputFormat, "required,meshformat"); err != nil {
		logger.WithFields(logrus.Fields{"output_format": outputFormat}).
			Warn("Unsupported output format requested")
		return nil, ErrUnsupportedOutputFormat
	}
	admission.Target = formats.Format(outputFormat)

	for _, fh := range files {
		c, rej := v.check(fh)
		if rej != nil {
			logger.WithFields(logrus.Fields{"reason": rej.Reason}).Warn(rej.Message)
			admission.Rejections = append(admission.Rejections, *rej)
			continue
		}
		logger.WithFields(logrus.Fields{
			"file":     c.Filename,
			"size":     c.Size,
			"mimeType": c.MimeType,
		}).Debug("File validated")
		admission.Files = append(admission.Files, *c)
	}
	return admission, nil
}

func (v *IntakeValidator) check(fh *multipart.FileHeader) (*Candidate, *Rejection) {
	if fh == nil {
		return nil, &Rejection{ReasonInvalidFilename, "Invalid filename for file"}
	}
	source, ok := formats.FromFilename(fh.Filename)
	if !ok {
		return nil, &Rejection{ReasonInvalidFormat, fmt.Sprintf("Invalid file format: %s", fh.Filename)}
	}

	size, mime, err := probe(fh)
	if err != nil {
		return nil, &Rejection{ReasonUnreadable, fmt.Sprintf("Error reading %s: %v", fh.Filename, err)}
	}
	if size > v.limits.MaxFileSize {
		return nil, &Rejection{ReasonTooLarge, fmt.Sprintf("File too large: %s (max %s per file)",
			fh.Filename, formatSize(v.limits.MaxFileSize))}
	}

	name := SanitizeFilename(fh.Filename)
	if name == "" {
		return nil, &Rejection{ReasonInvalidFilename, "Invalid filename for file"}
	}
	// A stem made only of dropped characters takes the extension with it.
	if f, ok := formats.FromFilename(name); !ok || f != source {
		name += source.Ext()
	}

	return &Candidate{
		Header:       fh,
		OriginalName: fh.Filename,
		Filename:     name,
		Source:       source,
		Size:         size,
		MimeType:     mime,
	}, nil
}

// formatSize renders a byte count in the largest unit it reaches, e.g.
// "100MB", "1.5MB", "512KB" or "10 bytes".
func formatSize(n int64) string {
	units := []struct {
		size int64
		name string
	}{{1 << 30, "GB"}, {1 << 20, "MB"}, {1 << 10, "KB"}}
	for _, u := range units {
		if n >= u.size {
			v := strconv.FormatFloat(float64(n)/float64(u.size), 'f', 1, 64)
			return strings.TrimSuffix(v, ".0") + u.name
		}
	}
	return fmt.Sprintf("%d bytes", n)
}

// probe measures the upload by seeking to its end and back, then sniffs its
// content type. The part is left unconsumed.
func probe(fh *multipart.FileHeader) (int64, string, error) {
	f, err := fh.Open()
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, "", err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return 0, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, "", err
	}
	return size, mt.String(), nil
}
