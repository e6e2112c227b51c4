//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Supervision (restarts, panic recovery) lives above it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// SnapshotSink receives refreshed message snapshots for one channel.
// Push must never block the caller; Fail terminates the sink with the
// given reason and nothing is delivered afterwards.
type SnapshotSink interface {
	Push(snapshot []domain.Message)
	Fail(err error)
	Limit() int
}

// IRegistry tracks which live feeds observe which channel.
type IRegistry interface {
	SinksForChannel(channelID string) []SnapshotSink
	Register(feedID, channelID string, sink SnapshotSink)
	Unregister(feedID, channelID string)
	Channels() []string
}
