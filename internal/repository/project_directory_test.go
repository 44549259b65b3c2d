package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/config"
)

func TestStaticProjectDirectory(t *testing.T) {
	ctx := context.Background()
	project, owner := uuid.New(), uuid.New()
	d, err := NewStaticProjectDirectory([]config.ProjectEntry{{ID: project.String(), OwnerID: owner.String()}})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}

	if ok, _ := d.ProjectExists(ctx, project); !ok {
		t.Fatal("configured project should exist")
	}
	got, err := d.ProjectOwner(ctx, project)
	if err != nil || got != owner {
		t.Fatalf("owner = %s, %v; want %s", got, err, owner)
	}
	if _, err := d.ProjectOwner(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown project: expected not found, got %v", err)
	}

	if _, err := NewStaticProjectDirectory([]config.ProjectEntry{{ID: "nope", OwnerID: owner.String()}}); err == nil {
		t.Fatal("expected invalid project id to be rejected")
	}
}
