package dataset

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/odoo-bridge/internal/frame"
)

// S3Source serves datasets dropped into a bucket under
// <dataset_id>/<sheet> keys. Mirrors the local layout so datasets can move
// between the two without re-mapping.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source builds a source against the given bucket. An empty profile
// uses the default AWS credential chain.
func NewS3Source(ctx context.Context, bucket, region, profile string) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Source{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

func (s *S3Source) Frame(ctx context.Context, datasetID, sheet string) (*frame.Frame, error) {
	key := path.Join(datasetID, path.Base(sheet))
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer obj.Body.Close()

	if strings.HasSuffix(strings.ToLower(key), ".xlsx") {
		return parseXLSX(obj.Body)
	}
	return parseCSV(obj.Body)
}

func (s *S3Source) Sheets(ctx context.Context, datasetID string) ([]string, error) {
	prefix := datasetID + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size != nil && *obj.Size == 0 {
				continue
			}
			name := strings.TrimPrefix(key, prefix)
			if strings.Contains(name, "/") {
				continue
			}
			switch strings.ToLower(path.Ext(name)) {
			case ".csv", ".xlsx":
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
