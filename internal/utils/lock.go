package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

var ErrLockTimeout = errors.New("lock timeout")

// Locker serialises work on one key. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker with one lock per key. Entries are
// dropped once nobody holds or waits for them. A waiter gives up when its
// ctx is done.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{} // 容量为 1，持有锁 = 放入一个元素
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	return func() {
		<-e.ch
		k.release(key, e)
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// EtcdLocker is a Locker shared between instances. The key lives under a
// lease that is kept alive while the lock is held and revoked on unlock, so a
// crashed holder frees the key once the lease expires.
type EtcdLocker struct {
	client     *clientv3.Client
	prefix     string
	ttl        int64
	retries    int
	retryDelay time.Duration
}

func NewEtcdLocker(client *clientv3.Client, prefix string) *EtcdLocker {
	return &EtcdLocker{
		client:     client,
		prefix:     prefix,
		ttl:        10,
		retries:    50,
		retryDelay: 15 * time.Millisecond,
	}
}

func (l *EtcdLocker) Lock(ctx context.Context, key string) (func(), error) {
	lease, err := l.client.Grant(ctx, l.ttl)
	if err != nil {
		return nil, err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	release := func() {
		cancel()
		_, _ = l.client.Revoke(context.Background(), lease.ID)
	}

	ch, err := l.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		release()
		return nil, err
	}
	go func() {
		for range ch {
		}
	}()

	fullKey := l.prefix + key
	for i := 0; i < l.retries; i++ {
		res, err := l.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(fullKey), "=", 0)).
			Then(clientv3.OpPut(fullKey, "locked", clientv3.WithLease(lease.ID))).
			Commit()
		if err == nil && res.Succeeded {
			return release, nil
		}

		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	release()
	return nil, ErrLockTimeout
}
