// Package store mirrors each room's board encoding into redis so the REST
// surface can read it without touching the room actors. Writes are best
// effort: a room never waits on redis and never observes a store failure.
package store

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeTimeout = 2 * time.Second
	queueSize    = 256
)

// ErrNoRoom is returned by Board when the store holds nothing for the id.
var ErrNoRoom = staticErr("no board stored for room")

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Open connects a redis client from a redis:// or rediss:// URL.
func Open(rawURL string) (*redis.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, staticErr("REDIS_URL is required")
	}
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

type write struct {
	roomID string
	fen    string
}

// Store serializes write-through traffic onto a single worker so successive
// positions for one room land in order.
type Store struct {
	rdb   *redis.Client
	log   *zap.Logger
	inbox chan write
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func New(rdb *redis.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		rdb:   rdb,
		log:   log,
		inbox: make(chan write, queueSize),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// SaveBoard enqueues a fire-and-forget write of the room's board encoding.
// It never blocks; when the queue is full the write is dropped.
func (s *Store) SaveBoard(roomID, fen string) {
	select {
	case s.inbox <- write{roomID: roomID, fen: fen}:
	case <-s.stop:
	default:
		s.log.Warn("store_write_dropped", zap.String("room_id", roomID))
	}
}

// Board reads the stored hash for a room id.
func (s *Store) Board(ctx context.Context, roomID string) (map[string]string, error) {
	data, err := s.rdb.HGetAll(ctx, keyRoom(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoRoom
	}
	return data, nil
}

// Close drains nothing: queued writes still in flight are abandoned.
func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case w := <-s.inbox:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := s.rdb.HSet(ctx, keyRoom(w.roomID), "fen", w.fen).Err()
			cancel()
			if err != nil {
				s.log.Warn("store_write_error", zap.String("room_id", w.roomID), zap.Error(err))
			}
		}
	}
}

func keyRoom(roomID string) string { return "rc:room:" + strings.TrimSpace(roomID) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, staticErr("unsupported redis scheme: " + u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
