package memory

import (
	"context"

	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/unitofwork"
)

// UnitOfWork adapts the memory repositories to the unitofwork contract so
// services can run against them in tests or storage-less local runs.
// Transactions are no-ops: every memory operation is already atomic.
type UnitOfWork struct {
	manifest *ManifestRepository
	writeups *WriteupRepository
	summary  *VectorIndexRepository
	chunks   *VectorIndexRepository
}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{
		manifest: NewManifestRepository(),
		writeups: NewWriteupRepository(),
		summary:  NewVectorIndexRepository(),
		chunks:   NewVectorIndexRepository(),
	}
}

func (u *UnitOfWork) Begin(_ context.Context) error { return nil }
func (u *UnitOfWork) Commit() error                 { return nil }
func (u *UnitOfWork) Rollback() error               { return nil }

func (u *UnitOfWork) ManifestRepository() contract.ManifestRepository {
	return u.manifest
}

func (u *UnitOfWork) WriteupRepository() contract.WriteupRepository {
	return u.writeups
}

func (u *UnitOfWork) SummaryIndexRepository() contract.VectorIndexRepository {
	return u.summary
}

func (u *UnitOfWork) ChunkIndexRepository() contract.VectorIndexRepository {
	return u.chunks
}

// Factory hands out the same shared UnitOfWork; state must survive across
// stages within a run.
type Factory struct {
	uow *UnitOfWork
}

func NewFactory() *Factory {
	return &Factory{uow: NewUnitOfWork()}
}

func (f *Factory) NewUnitOfWork(_ context.Context) unitofwork.UnitOfWork {
	return f.uow
}
