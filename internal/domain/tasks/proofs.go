package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"taskscore/internal/domain/access"
	"taskscore/internal/platform/blob"
)

// AttachProofs stores the uploads and appends them to the task's evidence.
func (s *Service) AttachProofs(ctx context.Context, actor access.Actor, taskID string, uploads []ProofUpload) (Task, error) {
	if len(uploads) == 0 {
		return Task{}, validationError("at least one file is required")
	}
	task, caps, err := s.load(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}
	if !caps.CanProgress() {
		return Task{}, ErrForbidden
	}
	if task.Status == StatusApproved {
		return Task{}, ErrEvidenceFrozen
	}

	proofs := make([]Proof, 0, len(uploads))
	for _, upload := range uploads {
		proof, err := s.prepareProof(task, actor, upload)
		if err != nil {
			return Task{}, err
		}
		proofs = append(proofs, proof)
	}

	for i, upload := range uploads {
		if err := s.blobs.Put(ctx, proofs[i].FileKey, proofs[i].ContentType, upload.Data); err != nil {
			return Task{}, fmt.Errorf("store proof file: %w", err)
		}
	}

	if _, err := s.store.InsertProofs(ctx, actor.TenantID, taskID, proofs); err != nil {
		// Files already written stay orphaned under their unique keys.
		slog.Warn("proof insert failed after upload", "taskId", taskID, "files", len(proofs), "err", err)
		return Task{}, err
	}
	return s.Get(ctx, actor, taskID)
}

func (s *Service) prepareProof(task Task, actor access.Actor, upload ProofUpload) (Proof, error) {
	name := sanitizeFileName(upload.FileName)
	if len(upload.Data) == 0 {
		return Proof{}, validationError("file %s is empty", name)
	}
	if s.opts.MaxProofBytes > 0 && int64(len(upload.Data)) > s.opts.MaxProofBytes {
		return Proof{}, validationError("file %s exceeds %d bytes", name, s.opts.MaxProofBytes)
	}
	kind, ok := ProofKindFor(upload.ContentType)
	if !ok {
		return Proof{}, validationError("file %s must be an image or document", name)
	}
	return Proof{
		TaskID:      task.ID,
		FileKey:     fmt.Sprintf("%s/%s/%s%s", task.TenantID, task.ID, s.newKey(), strings.ToLower(filepath.Ext(name))),
		FileName:    name,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Data)),
		Kind:        kind,
		UploadedBy:  actor.EmployeeID,
	}, nil
}

func (s *Service) CountProofs(ctx context.Context, actor access.Actor, taskID string) (int, error) {
	if _, _, err := s.load(ctx, actor, taskID); err != nil {
		return 0, err
	}
	return s.store.CountProofs(ctx, actor.TenantID, taskID)
}

func (s *Service) ListProofs(ctx context.Context, actor access.Actor, taskID string) ([]Proof, error) {
	if _, _, err := s.load(ctx, actor, taskID); err != nil {
		return nil, err
	}
	proofs, err := s.store.ListProofs(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if proofs == nil {
		proofs = []Proof{}
	}
	return proofs, nil
}

// OpenProof returns the proof metadata and its file. The caller closes Body.
func (s *Service) OpenProof(ctx context.Context, actor access.Actor, taskID, proofID string) (Proof, blob.Object, error) {
	if _, _, err := s.load(ctx, actor, taskID); err != nil {
		return Proof{}, blob.Object{}, err
	}
	proof, err := s.store.GetProof(ctx, actor.TenantID, taskID, proofID)
	if err != nil {
		return Proof{}, blob.Object{}, err
	}
	obj, err := s.blobs.Open(ctx, proof.FileKey)
	if err != nil {
		return Proof{}, blob.Object{}, err
	}
	return proof, obj, nil
}

func sanitizeFileName(name string) string {
	cleaned := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	cleaned = strings.ReplaceAll(cleaned, "\x00", "")
	if cleaned == "" || cleaned == "." || cleaned == "/" {
		return "proof.bin"
	}
	return cleaned
}
