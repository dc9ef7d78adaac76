package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"

	"walchat/walchat/config"
	"walchat/walchat/sources/memstore"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores chat messages as JSON objects, one per message, under
// users/<address>/sessions/<session_id>/. This is the durable-storage hook;
// the in-memory store never depends on it succeeding.
type Archive struct {
	client *minio.Client
	bucket string
}

func NewArchive(cfg config.Config) (*Archive, error) {
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: false,
		},
	)
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(context.Background(), cfg.MinIOBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &Archive{client: client, bucket: cfg.MinIOBucket}, nil
}

// ForAddress binds the archive to one wallet address, yielding the per-store
// hook the session registry consumes.
func (a *Archive) ForAddress(address string) memstore.Archiver {
	return &boundArchive{archive: a, address: address}
}

type boundArchive struct {
	archive *Archive
	address string
}

func (b *boundArchive) StoreMessage(ctx context.Context, sessionID string, msg memstore.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := path.Join("users", b.address, "sessions", sessionID, msg.ID+".json")
	_, err = b.archive.client.PutObject(ctx, b.archive.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (b *boundArchive) LoadSessions(ctx context.Context, userID string) ([]memstore.Session, error) {
	prefix := path.Join("users", userID, "sessions") + "/"

	bySession := make(map[string][]memstore.Message)
	for obj := range b.archive.client.ListObjects(ctx, b.archive.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		rest := strings.TrimPrefix(obj.Key, prefix)
		sessionID, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		msg, err := b.archive.getMessage(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		bySession[sessionID] = append(bySession[sessionID], msg)
	}

	sessions := make([]memstore.Session, 0, len(bySession))
	for sessionID, msgs := range bySession {
		sort.Slice(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		})
		sessions = append(sessions, memstore.RebuildSession(sessionID, msgs))
	}
	// Newest-created first, matching the live registry's ordering.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (a *Archive) getMessage(ctx context.Context, key string) (memstore.Message, error) {
	var msg memstore.Message
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return msg, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}
