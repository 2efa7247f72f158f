package impl

import (
	"context"

	"rewardnet/internal/domain/entity"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/errors"

	"github.com/google/uuid"
)

// walkUpline follows parent links from start, nearest first, collecting at most maxLevel ancestors.
// A dangling parent reference ends the walk; any other store error is returned.
func walkUpline(ctx context.Context, repo repository.ParticipantRepository, start *entity.Participant, maxLevel int) ([]*entity.Ancestor, error) {
	ancestors := make([]*entity.Ancestor, 0, min(maxLevel, 8))
	visited := map[uuid.UUID]struct{}{start.ID: {}}

	current := start
	for level := 1; level <= maxLevel && current.ParentID != nil; level++ {
		parentID := *current.ParentID
		if _, seen := visited[parentID]; seen {
			break
		}

		parent, err := repo.FindByID(ctx, parentID)
		if errors.Is(err, repository.ErrParticipantNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		visited[parentID] = struct{}{}
		ancestors = append(ancestors, &entity.Ancestor{Level: level, Participant: parent})
		current = parent
	}

	return ancestors, nil
}

// walkDownline collects descendants of root breadth-first, left before right, at most maxDepth levels deep.
// Each level is fetched in one batch; children missing from the store are skipped.
func walkDownline(ctx context.Context, repo repository.ParticipantRepository, root *entity.Participant, maxDepth int) ([]*entity.Descendant, error) {
	descendants := make([]*entity.Descendant, 0)
	visited := map[uuid.UUID]struct{}{root.ID: {}}
	frontier := root.Children()

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		nodes, err := repo.FindByIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]uuid.UUID, 0, len(frontier)*2)
		for _, id := range frontier {
			node, ok := nodes[id]
			if !ok {
				continue
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}

			descendants = append(descendants, &entity.Descendant{Depth: depth, Participant: node})
			next = append(next, node.Children()...)
		}
		frontier = next
	}

	return descendants, nil
}

// openSlot is the first free position found by a spillover scan.
type openSlot struct {
	parent *entity.Participant
	slot   entity.Slot
	depth  int
}

var errNoOpenSlot = errors.New("no open slot under sponsor")

// findOpenSlot scans the sponsor's subtree breadth-first and returns the shallowest,
// leftmost node with an empty child slot. Levels are read in batches, preserving FIFO order.
func findOpenSlot(ctx context.Context, repo repository.ParticipantRepository, sponsorID uuid.UUID) (*openSlot, error) {
	visited := make(map[uuid.UUID]struct{})
	frontier := []uuid.UUID{sponsorID}

	for depth := 0; len(frontier) > 0; depth++ {
		nodes, err := repo.FindByIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]uuid.UUID, 0, len(frontier)*2)
		for _, id := range frontier {
			node, ok := nodes[id]
			if !ok {
				continue
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}

			if slot, open := node.OpenSlot(); open {
				return &openSlot{parent: node, slot: slot, depth: depth}, nil
			}
			next = append(next, node.Children()...)
		}
		frontier = next
	}

	return nil, errNoOpenSlot
}
