package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/membership-dao/src/dao"
)

const (
	noncePrefix = "dao:nonce:"
	nonceTTL    = 5 * time.Minute

	// EventStream is the stream Publisher appends engine events to.
	EventStream = "dao.events"
)

// ConnectRedis parses url and checks the server answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// SetNonce stores the login challenge issued to addr.
func SetNonce(ctx context.Context, rdb *redis.Client, addr, nonce string) error {
	return rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

// GetAndDelNonce consumes the challenge of addr. It returns redis.Nil when
// there is none.
func GetAndDelNonce(ctx context.Context, rdb *redis.Client, addr string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// Publisher appends engine events to a redis stream. It is a dao.Observer.
type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewPublisher publishes to EventStream. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewPublisher(rdb *redis.Client, maxLen int64) *Publisher {
	return &Publisher{rdb: rdb, stream: EventStream, maxLen: maxLen}
}

func (p *Publisher) Observe(ctx context.Context, ev dao.Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: eventValues(ev),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

func eventValues(ev dao.Event) map[string]interface{} {
	values := map[string]interface{}{
		"kind":    string(ev.Kind),
		"account": ev.Account.Hex(),
		"at":      ev.At.UTC().Format(time.RFC3339),
	}
	if !ev.ProposalID.IsZero() {
		values["proposal"] = ev.ProposalID.Hex()
		values["status"] = ev.Status.String()
		values["votes_for"] = strconv.FormatUint(ev.Votes.For, 10)
		values["votes_against"] = strconv.FormatUint(ev.Votes.Against, 10)
		values["votes_abstain"] = strconv.FormatUint(ev.Votes.Abstain, 10)
	}
	if ev.Choice.Valid() {
		values["choice"] = ev.Choice.String()
		values["relayed"] = strconv.FormatBool(ev.Relayed)
	}
	if ev.Error != "" {
		values["error"] = ev.Error
	}
	return values
}
