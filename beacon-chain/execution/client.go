package execution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethRPC "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

var log = logrus.WithField("prefix", "execution")

// ErrAllEndpointsFailed is returned when no configured engine endpoint
// answered a call successfully.
var ErrAllEndpointsFailed = errors.New("execution: all engine endpoints failed")

const defaultEngineTimeout = 2 * time.Second

// rpcCaller is the slice of the JSON-RPC client the engine calls need.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type endpoint struct {
	url    string
	client rpcCaller
}

// Client fans engine API calls out over one or more endpoints. Reads
// go to the first endpoint that answers; writes broadcast to all.
type Client struct {
	endpoints []*endpoint
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*dialConfig)

type dialConfig struct {
	timeout   time.Duration
	jwtSecret []byte
}

// WithTimeout sets the per-endpoint call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *dialConfig) { c.timeout = d }
}

// WithJWTSecret authenticates every request with a token signed by the
// given secret, as engine endpoints behind authrpc require.
func WithJWTSecret(secret []byte) Option {
	return func(c *dialConfig) { c.jwtSecret = secret }
}

// NewClient dials every endpoint URL. Dialing is lazy for HTTP
// transports, so unreachable endpoints surface as call errors rather
// than construction errors.
func NewClient(urls []string, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("execution: at least one engine endpoint required")
	}
	cfg := &dialConfig{timeout: defaultEngineTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	endpoints := make([]*endpoint, 0, len(urls))
	for _, url := range urls {
		rpcClient, err := dialEndpoint(url, cfg.jwtSecret)
		if err != nil {
			return nil, errors.Wrapf(err, "could not dial engine endpoint %s", url)
		}
		endpoints = append(endpoints, &endpoint{url: url, client: rpcClient})
	}
	log.WithField("endpoints", len(endpoints)).Info("Connected to execution engine endpoints")
	return &Client{endpoints: endpoints, timeout: cfg.timeout}, nil
}

// PreparePayload asks the endpoints in order to start payload
// construction and returns the first successful response.
func (c *Client) PreparePayload(ctx context.Context, params AssembleBlockParams) (*PayloadResponse, error) {
	ctx, span := trace.StartSpan(ctx, "execution.PreparePayload")
	defer span.End()

	var response PayloadResponse
	err := c.firstSuccess(ctx, "engine_preparePayload", &response, params)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetPayload fetches the built payload from the first endpoint that
// has it.
func (c *Client) GetPayload(ctx context.Context, payloadID hexutil.Uint64) (*ExecutableData, error) {
	ctx, span := trace.StartSpan(ctx, "execution.GetPayload")
	defer span.End()

	var data ExecutableData
	err := c.firstSuccess(ctx, "engine_getPayload", &data, payloadID)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// ExecutePayload broadcasts the payload to every endpoint and folds
// the verdicts: any VALID wins, otherwise any INVALID, otherwise
// SYNCING. Disagreeing engines are logged as a consensus failure.
func (c *Client) ExecutePayload(ctx context.Context, data *ExecutableData) (PayloadStatus, error) {
	ctx, span := trace.StartSpan(ctx, "execution.ExecutePayload")
	defer span.End()

	type verdict struct {
		url    string
		status PayloadStatus
	}
	var (
		mu       sync.Mutex
		verdicts []verdict
		errs     []error
	)
	var wg sync.WaitGroup
	for _, ep := range c.endpoints {
		wg.Add(1)
		go func(ep *endpoint) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			var response executePayloadResponse
			err := ep.client.CallContext(callCtx, &response, "engine_executePayload", data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, errors.Wrap(err, ep.url))
				return
			}
			verdicts = append(verdicts, verdict{url: ep.url, status: response.Status})
		}(ep)
	}
	wg.Wait()

	if len(verdicts) == 0 {
		return "", errors.Wrap(ErrAllEndpointsFailed, joinErrors(errs))
	}

	status := verdicts[0].status
	disagreement := false
	for _, v := range verdicts[1:] {
		if v.status != status {
			disagreement = true
		}
	}
	if disagreement {
		fields := logrus.Fields{"blockHash": data.BlockHash.Hex()}
		for _, v := range verdicts {
			fields[v.url] = string(v.status)
		}
		log.WithFields(fields).Error("Execution engines disagree on payload validity")
	}

	for _, want := range []PayloadStatus{StatusValid, StatusInvalid, StatusSyncing} {
		for _, v := range verdicts {
			if v.status == want {
				return want, nil
			}
		}
	}
	// An unrecognized status from every engine; surface the first.
	return verdicts[0].status, nil
}

// ForkchoiceUpdated broadcasts the new forkchoice state; one ack is
// enough.
func (c *Client) ForkchoiceUpdated(ctx context.Context, params ForkchoiceParams) error {
	ctx, span := trace.StartSpan(ctx, "execution.ForkchoiceUpdated")
	defer span.End()
	return c.broadcast(ctx, "engine_forkchoiceUpdated", params)
}

// ConsensusValidated broadcasts the consensus verdict on a payload;
// one ack is enough.
func (c *Client) ConsensusValidated(ctx context.Context, params ConsensusValidatedParams) error {
	ctx, span := trace.StartSpan(ctx, "execution.ConsensusValidated")
	defer span.End()
	return c.broadcast(ctx, "engine_consensusValidated", params)
}

// firstSuccess tries the endpoints in order and stops at the first
// that answers.
func (c *Client) firstSuccess(ctx context.Context, method string, result interface{}, args ...interface{}) error {
	var errs []error
	for _, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := ep.client.CallContext(callCtx, result, method, args...)
		cancel()
		if err == nil {
			return nil
		}
		log.WithError(err).WithFields(logrus.Fields{
			"endpoint": ep.url,
			"method":   method,
		}).Warn("Engine endpoint call failed")
		errs = append(errs, errors.Wrap(err, ep.url))
	}
	return errors.Wrap(ErrAllEndpointsFailed, joinErrors(errs))
}

// broadcast calls every endpoint concurrently and succeeds when at
// least one endpoint acknowledges.
func (c *Client) broadcast(ctx context.Context, method string, args ...interface{}) error {
	var (
		mu        sync.Mutex
		succeeded bool
		errs      []error
	)
	var wg sync.WaitGroup
	for _, ep := range c.endpoints {
		wg.Add(1)
		go func(ep *endpoint) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			err := ep.client.CallContext(callCtx, nil, method, args...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, errors.Wrap(err, ep.url))
				return
			}
			succeeded = true
		}(ep)
	}
	wg.Wait()

	if succeeded {
		return nil
	}
	return errors.Wrap(ErrAllEndpointsFailed, joinErrors(errs))
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

var _ EngineCaller = (*Client)(nil)

func dialEndpoint(url string, jwtSecret []byte) (*gethRPC.Client, error) {
	if len(jwtSecret) == 0 {
		return gethRPC.DialHTTP(url)
	}
	return gethRPC.DialHTTPWithClient(url, newAuthClient(jwtSecret))
}
