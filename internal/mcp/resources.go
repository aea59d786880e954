package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/ranking"
)

func (h *handlers) board(ctx context.Context, trainerID string) (*ranking.Board, error) {
	awards, err := h.ds.ListAwards(ctx, trainerID, models.XPApproved)
	if err != nil {
		return nil, fmt.Errorf("listing approved awards: %w", err)
	}
	pending, err := h.ds.ListPendingAwards(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("listing pending awards: %w", err)
	}
	active, err := h.ds.ActiveCompetition(ctx, trainerID)
	if err != nil {
		h.log.Warn("ranking_board: active challenge query failed", "error", err)
		active = nil
	}
	b := ranking.BuildBoard(h.now().In(h.loc), awards, pending, active)
	return &b, nil
}

func (h *handlers) rankingBoard(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := h.board(ctx, TrainerIDFromContext(ctx))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
