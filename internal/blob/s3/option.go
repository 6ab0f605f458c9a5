package s3

type options struct {
	bucket       string
	region       string
	endpoint     string
	usePathStyle bool
	accessKey    string
	secretKey    string
}

// Option configures the S3 blob store.
type Option func(*options)

// WithBucket sets the bucket name. Required.
func WithBucket(bucket string) Option {
	return func(o *options) {
		o.bucket = bucket
	}
}

// WithRegion sets the AWS region. Defaults to us-east-1.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint points the client at a custom S3-compatible endpoint.
// Path-style addressing is needed for most non-AWS endpoints.
func WithEndpoint(endpoint string, pathStyle bool) Option {
	return func(o *options) {
		o.endpoint = endpoint
		o.usePathStyle = pathStyle
	}
}

// WithStaticCredentials uses a fixed access key pair instead of the default
// credential chain.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}
