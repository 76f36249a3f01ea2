// Package workspaces manages the named document groups that scope retrieval.
package workspaces

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
)

const maxNameLength = 255

// Service handles the business logic for workspaces.
type Service struct {
	Repo  rag.Repository
	Store rag.VectorStore
}

// Create creates a new workspace owned by userID.
func (s *Service) Create(ctx context.Context, userID int64, name string) (*rag.Workspace, error) {
	name = strings.TrimSpace(name)
	log := logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"name":    name,
	})
	log.Info("service: creating new workspace")

	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is required", rag.ErrInvalidInput)
	}
	if len([]rune(name)) > maxNameLength {
		return nil, fmt.Errorf("%w: workspace name is longer than %d characters", rag.ErrInvalidInput, maxNameLength)
	}

	ws := &rag.Workspace{UserID: userID, Name: name}
	if err := s.Repo.CreateWorkspace(ctx, ws); err != nil {
		log.WithError(err).Error("service: failed to create workspace in database")
		return nil, err
	}

	log.WithField("workspace_id", ws.ID).Info("service: workspace created successfully")
	return ws, nil
}

// List returns the user's workspaces, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]rag.Workspace, error) {
	log := logrus.WithField("user_id", userID)

	list, err := s.Repo.ListWorkspaces(ctx, userID)
	if err != nil {
		log.WithError(err).Error("service: failed to list workspaces from database")
		return nil, err
	}
	if list == nil {
		list = []rag.Workspace{}
	}
	log.WithField("count", len(list)).Debug("service: workspaces listed")
	return list, nil
}

// Get returns the workspace if userID owns it. A workspace owned by someone
// else yields rag.ErrUnauthorized.
func (s *Service) Get(ctx context.Context, workspaceID, userID int64) (*rag.Workspace, error) {
	ws, err := s.Repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, rag.ErrNotFound) {
			logrus.WithError(err).WithField("workspace_id", workspaceID).Error("service: database error while getting workspace")
		}
		return nil, err
	}
	if ws.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"workspace_id": workspaceID,
			"user_id":      userID,
		}).Warn("service: workspace access denied")
		return nil, fmt.Errorf("%w: workspace %d", rag.ErrUnauthorized, workspaceID)
	}
	return ws, nil
}

// Delete removes the workspace, its documents and every chunk stored for them.
func (s *Service) Delete(ctx context.Context, workspaceID, userID int64) error {
	log := logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"user_id":      userID,
	})
	log.Info("service: deleting workspace")

	if _, err := s.Get(ctx, workspaceID, userID); err != nil {
		return err
	}

	docs, err := s.Repo.ListDocuments(ctx, workspaceID)
	if err != nil {
		log.WithError(err).Error("service: failed to list documents for deletion")
		return err
	}
	for _, d := range docs {
		if err := s.Store.DeleteByDocument(ctx, d.ID); err != nil {
			log.WithError(err).WithField("document_id", d.ID).Error("service: failed to delete document chunks")
			return err
		}
	}
	if err := s.Store.DeleteByWorkspace(ctx, workspaceID); err != nil {
		log.WithError(err).Error("service: failed to delete workspace chunks")
		return err
	}
	if err := s.Repo.DeleteWorkspace(ctx, workspaceID); err != nil {
		log.WithError(err).Error("service: failed to delete workspace from database")
		return err
	}

	log.WithField("documents", len(docs)).Info("service: workspace deleted successfully")
	return nil
}
