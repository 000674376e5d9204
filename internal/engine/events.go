package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/sink"
)

// размер буфера канала событий одного run.
const eventBufferSize = 64

// emitter — канал событий одного run.
//
// Все пути кода эмитируют события через единственный канал, которым
// владеет emitter; потребители (sinks) подписаны на него через
// горутину-насос. Порядок событий в рамках run совпадает с порядком
// выполнения узлов.
type emitter struct {
	runID uuid.UUID
	ch    chan domain.RunEvent
	seq   int
	done  chan struct{}
}

// newEmitter создаёт emitter и запускает насос в переданные sinks.
//
// Насос доставляет события последовательно в каждый sink; ошибка
// доставки события не прерывает run (sink — внешний коллаборатор,
// его деградация не должна ломать выполнение).
func newEmitter(runID uuid.UUID, sinks []sink.Sink) *emitter {
	e := &emitter{
		runID: runID,
		ch:    make(chan domain.RunEvent, eventBufferSize),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(e.done)
		for ev := range e.ch {
			for _, s := range sinks {
				// Доставка best-effort: sink сам логирует свои ошибки
				_ = s.Append(context.Background(), ev)
			}
		}
	}()

	return e
}

// emit отправляет событие в канал, проставляя порядковый номер.
// Вызывается только координирующей горутиной run.
func (e *emitter) emit(ev domain.RunEvent) {
	ev.RunID = e.runID
	ev.Seq = e.seq
	ev.Timestamp = time.Now()
	e.seq++
	e.ch <- ev
}

// emitStart эмитирует событие начала выполнения узла.
func (e *emitter) emitStart(nodeID, nodeKind string) {
	e.emit(domain.RunEvent{
		Event:    domain.EventNodeStart,
		NodeID:   nodeID,
		NodeKind: nodeKind,
	})
}

// emitSucceeded эмитирует событие успешного завершения узла.
func (e *emitter) emitSucceeded(nodeID, nodeKind string, output any) {
	e.emit(domain.RunEvent{
		Event:    domain.EventNodeSucceeded,
		NodeID:   nodeID,
		NodeKind: nodeKind,
		Output:   output,
	})
}

// emitFailed эмитирует событие ошибки узла.
func (e *emitter) emitFailed(nodeID, nodeKind string, err error) {
	ev := domain.RunEvent{
		Event:    domain.EventNodeFailed,
		NodeID:   nodeID,
		NodeKind: nodeKind,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.emit(ev)
}

// emitSkipped эмитирует событие пропуска узла с вычисленными условиями.
func (e *emitter) emitSkipped(nodeID, nodeKind string, reason domain.SkipReason, conditions map[string]bool) {
	e.emit(domain.RunEvent{
		Event:               domain.EventNodeSkipped,
		NodeID:              nodeID,
		NodeKind:            nodeKind,
		SkipReason:          reason,
		EvaluatedConditions: conditions,
	})
}

// close закрывает канал и дожидается, пока насос доставит остаток.
func (e *emitter) close() {
	close(e.ch)
	<-e.done
}
