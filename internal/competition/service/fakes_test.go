package service

import (
	"context"
	"sort"
	"sync"

	"alchemy/internal/competition/model"
	"alchemy/internal/competition/repository"
	"alchemy/internal/competition/status"
)

type memoryDescriptors struct {
	mu    sync.Mutex
	items map[string]status.Descriptor
	err   error
}

func newMemoryDescriptors(ds ...status.Descriptor) *memoryDescriptors {
	m := &memoryDescriptors{items: make(map[string]status.Descriptor)}
	for _, d := range ds {
		m.items[d.ID] = d
	}
	return m
}

func (m *memoryDescriptors) Replace(_ context.Context, d status.Descriptor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.items[d.ID] = d
	return true, nil
}

func (m *memoryDescriptors) GetByID(_ context.Context, id string) (*status.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, repository.ErrDescriptorNotFound
	}
	return &d, nil
}

func (m *memoryDescriptors) List(_ context.Context, filter repository.ListFilter) ([]status.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]status.Descriptor, 0, len(m.items))
	for _, d := range m.items {
		if filter.DAO != "" && d.DAO != filter.DAO {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryDescriptors) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrDescriptorNotFound
	}
	delete(m.items, id)
	return nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	items map[string]model.StatusRecord
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{items: make(map[string]model.StatusRecord)}
}

func (m *memorySnapshots) Save(_ context.Context, rec model.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[rec.ID] = rec
	return nil
}

func (m *memorySnapshots) All(_ context.Context) (map[string]model.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.StatusRecord, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out, nil
}

func (m *memorySnapshots) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memorySnapshots) get(id string) (model.StatusRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.items[id]
	return rec, ok
}

type channelPublisher struct {
	events chan model.StatusRecord
}

func newChannelPublisher() *channelPublisher {
	return &channelPublisher{events: make(chan model.StatusRecord, 32)}
}

func (p *channelPublisher) PublishStatusChanged(_ context.Context, rec model.StatusRecord) error {
	p.events <- rec
	return nil
}

type memoryArchive struct {
	mu      sync.Mutex
	items   map[string]model.ArchiveRecord
	putErr  error
	written chan string
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{items: make(map[string]model.ArchiveRecord), written: make(chan string, 8)}
}

func (a *memoryArchive) PutFinal(_ context.Context, rec model.ArchiveRecord) error {
	a.mu.Lock()
	err := a.putErr
	if err == nil {
		a.items[rec.Descriptor.ID] = rec
	}
	a.mu.Unlock()
	a.written <- rec.Descriptor.ID
	return err
}

func (a *memoryArchive) GetFinal(_ context.Context, id string) (*model.ArchiveRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.items[id]
	if !ok {
		return nil, repository.ErrArchiveNotFound
	}
	return &rec, nil
}

func (a *memoryArchive) DeleteFinal(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, id)
	return nil
}

func (a *memoryArchive) has(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.items[id]
	return ok
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	seen []model.StatusRecord
}

func (b *recordingBroadcaster) Broadcast(rec model.StatusRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, rec)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seen)
}
