package imageio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog"
)

// ObjectAPI is the subset of the S3 client used to fetch images.
type ObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client. Empty fields fall back to the AWS
// default credential chain and region.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

type s3Store struct {
	api ObjectAPI
	cb  circuitbreaker.CircuitBreaker[any]
}

func newS3Store(api ObjectAPI, log zerolog.Logger) *s3Store {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			log.Warn().Str("component", "s3").
				Str("from", e.OldState.String()).
				Str("to", e.NewState.String()).
				Msg("circuit breaker state changed")
		}).
		Build()
	return &s3Store{api: api, cb: cb}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: %q has no key", ErrInvalidPath, ref)
	}
	return u.Host, key, nil
}

func (s *s3Store) resolve(ctx context.Context, ref string) (Source, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return Source{}, err
	}
	var head *s3.HeadObjectOutput
	err = s.call(func() error {
		var err error
		head, err = s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		return err
	})
	if err != nil {
		return Source{}, err
	}
	src := Source{
		Ref:  ref,
		Size: aws.ToInt64(head.ContentLength),
		ETag: strings.Trim(aws.ToString(head.ETag), `"`),
	}
	if head.LastModified != nil {
		src.ModTime = *head.LastModified
	}
	src.open = func(ctx context.Context) (io.ReadCloser, error) {
		var out *s3.GetObjectOutput
		err := s.call(func() error {
			var err error
			out, err = s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
			return err
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}
	return src, nil
}

// call runs fn behind the circuit breaker. Missing objects are the
// caller's fault and do not count as failures.
func (s *s3Store) call(fn func() error) error {
	if !s.cb.TryAcquirePermit() {
		return fmt.Errorf("s3 circuit breaker open: %w", circuitbreaker.ErrOpen)
	}
	err := fn()
	switch {
	case err == nil:
		s.cb.RecordSuccess()
		return nil
	case isNotFound(err):
		s.cb.RecordSuccess()
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	default:
		s.cb.RecordError(err)
		return fmt.Errorf("s3: %w", err)
	}
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	var nsb *s3types.NoSuchBucket
	return errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb)
}
