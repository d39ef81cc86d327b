package mcp

import (
	"context"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "deepfocus"
	serverVersion = "0.1.0"
)

// Server exposes notification search and the voice agent answer as MCP tools
type Server struct {
	uc     *triage.UseCase
	server *mcp.Server
}

type queryParams struct {
	Query string `json:"query" jsonschema:"What the user wants to know about their notifications"`
	TopK  *int   `json:"topK,omitempty" jsonschema:"Number of notifications to retrieve (1-20)"`
}

type searchHit struct {
	Text      string  `json:"text"`
	App       string  `json:"appName"`
	Title     string  `json:"title,omitempty"`
	Timestamp string  `json:"timeUtc"`
	Distance  float64 `json:"distance"`
}

type searchOutput struct {
	Hits []searchHit `json:"hits"`
}

type askOutput struct {
	Answer       string `json:"answer"`
	MatchedCount int    `json:"matchedCount"`
}

type ingestParams struct {
	NotificationID string `json:"notificationId" jsonschema:"Unique notification identifier; re-ingesting the same ID replaces the stored entry"`
	PackageName    string `json:"packageName" jsonschema:"Android package name of the source app"`
	AppName        string `json:"appName" jsonschema:"Display name of the source app"`
	Title          string `json:"title,omitempty" jsonschema:"Notification title, usually the sender"`
	Text           string `json:"text,omitempty" jsonschema:"Notification body"`
	Time           int64  `json:"time" jsonschema:"Unix epoch milliseconds when the notification was posted"`
	IsOngoing      bool   `json:"isOngoing,omitempty" jsonschema:"Whether the notification is ongoing"`
}

type ingestOutput struct {
	Status         string `json:"status"`
	NotificationID string `json:"notificationId"`
	ResponseText   string `json:"responseText,omitempty"`
}

// New builds an MCP server backed by the triage use case
func New(uc *triage.UseCase) *Server {
	s := &Server{
		uc: uc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_notifications",
		Description: "Search stored phone notifications by meaning and return the closest matches",
	}, s.search)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_focus_agent",
		Description: "Ask the focus agent about recent notifications and get a one or two sentence answer",
	}, s.ask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_notification",
		Description: "Store a phone notification so that it can be found later",
	}, s.ingest)

	return s
}

// Run serves until the transport closes or ctx is canceled
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Connect attaches the server to a single transport without blocking
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	session, err := s.server.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mcp server")
	}
	return session, nil
}

func (s *Server) search(ctx context.Context, req *mcp.CallToolRequest, params *queryParams) (*mcp.CallToolResult, searchOutput, error) {
	hits, err := s.uc.Search(ctx, &model.Query{Text: params.Query, TopK: params.TopK})
	if err != nil {
		logging.From(ctx).Warn("search_notifications failed", logging.ErrAttr(err))
		return nil, searchOutput{}, err
	}

	out := searchOutput{Hits: make([]searchHit, 0, len(hits))}
	for _, hit := range hits {
		out.Hits = append(out.Hits, searchHit{
			Text:      hit.Text,
			App:       hit.Metadata.SourceApp,
			Title:     hit.Metadata.Title,
			Timestamp: hit.Metadata.FormattedTimestamp,
			Distance:  hit.Distance,
		})
	}
	return nil, out, nil
}

func (s *Server) ask(ctx context.Context, req *mcp.CallToolRequest, params *queryParams) (*mcp.CallToolResult, askOutput, error) {
	answer, err := s.uc.Query(ctx, &model.Query{Text: params.Query, TopK: params.TopK})
	if err != nil {
		logging.From(ctx).Warn("ask_focus_agent failed", logging.ErrAttr(err))
		return nil, askOutput{}, err
	}

	return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answer.Text}},
		}, askOutput{
			Answer:       answer.Text,
			MatchedCount: answer.MatchedCount,
		}, nil
}

func (s *Server) ingest(ctx context.Context, req *mcp.CallToolRequest, params *ingestParams) (*mcp.CallToolResult, ingestOutput, error) {
	n := &model.Notification{
		ID:               model.NotificationID(params.NotificationID),
		PackageName:      params.PackageName,
		SourceApp:        params.AppName,
		Title:            params.Title,
		Body:             params.Text,
		OccurredAtMillis: params.Time,
		IsOngoing:        params.IsOngoing,
	}

	result, err := s.uc.Ingest(ctx, n)
	if err != nil {
		logging.From(ctx).Warn("ingest_notification failed", logging.ErrAttr(err))
		return nil, ingestOutput{}, err
	}

	out := ingestOutput{NotificationID: params.NotificationID}
	switch {
	case result.Intercepted != nil:
		out.Status = "intercepted"
		out.ResponseText = result.ResponseText
	case result.Skipped:
		out.Status = "skipped"
	default:
		out.Status = "ingested"
	}
	return nil, out, nil
}
