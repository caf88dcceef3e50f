package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
	"github.com/ironsheep/pid-symbol-tools/internal/knowledge"
	"github.com/ironsheep/pid-symbol-tools/internal/pipeline"
	"github.com/ironsheep/pid-symbol-tools/internal/refine"
)

var (
	errNoKnowledgeBase = errors.New("no knowledge base configured")
	errNoDetector      = errors.New("no detector configured: set detector.api_key or use the shapes backend")
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pid_tile_image", "pid_learn_symbol").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool done", "tool", params.Name, "duration", time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads images from cache as needed
//  4. Calls into the tiling, knowledge, refine or pipeline packages
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Tiling
	case "pid_tile_image":
		return s.handleTileImage(args)
	case "pid_tile_overlay":
		return s.handleTileOverlay(args)

	// Knowledge base
	case "pid_learn_symbol":
		return s.handleLearnSymbol(ctx, args)
	case "pid_identify_symbol":
		return s.handleIdentifySymbol(ctx, args)
	case "pid_ingest_symbols":
		return s.handleIngestSymbols(ctx, args)
	case "pid_kb_count":
		return s.handleKBCount(ctx)

	// Extraction
	case "pid_detect_and_refine":
		return s.handleDetectAndRefine(ctx, args)
	case "pid_run_pipeline":
		return s.handleRunPipeline(ctx, args)
	case "pid_get_results":
		return s.handleGetResults(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// region is a pixel rectangle supplied by the client, Max exclusive.
type region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r region) rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// loadRegion loads path and crops it when r is set.
func (s *Server) loadRegion(path string, r *region) (image.Image, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return img, nil
	}
	return imaging.CropRegion(img, r.rect().Add(img.Bounds().Min))
}

// tiling fills in the configured tile size and overlap. overlap is a
// pointer so that an explicit 0 is kept.
func (s *Server) tiling(size int, overlap *int) (int, int) {
	o := 0
	if overlap != nil {
		o = *overlap
	}
	if s.deps.Config != nil {
		if size == 0 {
			size = s.deps.Config.Tiling.Size
		}
		if overlap == nil {
			o = s.deps.Config.Tiling.Overlap
		}
	}
	return size, o
}

func sourceIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// === Tiling Handlers ===

type tileImageArgs struct {
	Path     string `json:"path"`
	SourceID string `json:"source_id"`
	TileSize int    `json:"tile_size"`
	Overlap  *int   `json:"overlap"`
	SaveDir  string `json:"save_dir"`
}

type tileInfo struct {
	ID    string `json:"id"`
	GridX int    `json:"grid_x"`
	GridY int    `json:"grid_y"`
	X1    int    `json:"x1"`
	Y1    int    `json:"y1"`
	X2    int    `json:"x2"`
	Y2    int    `json:"y2"`
}

type tileImageResult struct {
	SourceID string     `json:"source_id"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	TileSize int        `json:"tile_size"`
	Overlap  int        `json:"overlap"`
	Cols     int        `json:"cols"`
	Rows     int        `json:"rows"`
	Tiles    []tileInfo `json:"tiles"`
	Saved    []string   `json:"saved,omitempty"`
}

func (s *Server) handleTileImage(args json.RawMessage) (interface{}, error) {
	var a tileImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	size, overlap := s.tiling(a.TileSize, a.Overlap)
	if a.SourceID == "" {
		a.SourceID = sourceIDFromPath(a.Path)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	tiles, err := imaging.TileImage(img, a.SourceID, size, overlap)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	res := &tileImageResult{
		SourceID: a.SourceID,
		Width:    b.Dx(),
		Height:   b.Dy(),
		TileSize: size,
		Overlap:  overlap,
		Tiles:    make([]tileInfo, 0, len(tiles)),
	}
	for _, t := range tiles {
		res.Cols = maxInt(res.Cols, t.GridX+1)
		res.Rows = maxInt(res.Rows, t.GridY+1)
		res.Tiles = append(res.Tiles, tileInfo{
			ID: t.ID(), GridX: t.GridX, GridY: t.GridY,
			X1: t.Bounds.Min.X, Y1: t.Bounds.Min.Y, X2: t.Bounds.Max.X, Y2: t.Bounds.Max.Y,
		})
	}

	if a.SaveDir != "" {
		res.Saved, err = imaging.SaveTiles(a.SaveDir, tiles)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type tileOverlayArgs struct {
	Path      string `json:"path"`
	TileSize  int    `json:"tile_size"`
	Overlap   *int   `json:"overlap"`
	GridColor string `json:"grid_color"`
}

func (s *Server) handleTileOverlay(args json.RawMessage) (interface{}, error) {
	var a tileOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	size, overlap := s.tiling(a.TileSize, a.Overlap)
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	tiles, err := imaging.TileImage(img, sourceIDFromPath(a.Path), size, overlap)
	if err != nil {
		return nil, err
	}
	return imaging.TileGridOverlay(img, tiles, a.GridColor)
}

// === Knowledge Base Handlers ===

type learnSymbolArgs struct {
	Path     string  `json:"path"`
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Region   *region `json:"region"`
}

type learnSymbolResult struct {
	SymbolID string `json:"symbol_id"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Added    bool   `json:"added"`
	Count    int    `json:"count"`
}

func (s *Server) handleLearnSymbol(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.deps.Base == nil {
		return nil, errNoKnowledgeBase
	}
	var a learnSymbolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Label == "" {
		a.Label = knowledge.LabelFromFilename(filepath.Base(a.Path))
	}
	category := knowledge.NormalizeCategory(a.Category)
	if a.Category == "" {
		category = knowledge.GuessCategory(a.Label)
	}

	img, err := s.loadRegion(a.Path, a.Region)
	if err != nil {
		return nil, err
	}
	added, err := s.deps.Base.AddSymbol(ctx, img, a.Label, category, a.Path)
	if err != nil {
		return nil, err
	}
	count, err := s.deps.Base.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &learnSymbolResult{
		SymbolID: knowledge.SymbolID(a.Label, category),
		Label:    a.Label,
		Category: string(category),
		Added:    added,
		Count:    count,
	}, nil
}

type identifySymbolArgs struct {
	Path   string  `json:"path"`
	K      int     `json:"k"`
	Region *region `json:"region"`
}

type identifySymbolResult struct {
	Matches []knowledge.Match `json:"matches"`
}

func (s *Server) handleIdentifySymbol(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.deps.Base == nil {
		return nil, errNoKnowledgeBase
	}
	var a identifySymbolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.K <= 0 {
		a.K = 1
	}
	img, err := s.loadRegion(a.Path, a.Region)
	if err != nil {
		return nil, err
	}
	matches, err := s.deps.Base.SearchK(ctx, img, a.K)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []knowledge.Match{}
	}
	return &identifySymbolResult{Matches: matches}, nil
}

type ingestSymbolsArgs struct {
	Dir string `json:"dir"`
}

func (s *Server) handleIngestSymbols(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.deps.Base == nil {
		return nil, errNoKnowledgeBase
	}
	var a ingestSymbolsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return knowledge.IngestDir(ctx, s.deps.Base, a.Dir)
}

func (s *Server) handleKBCount(ctx context.Context) (interface{}, error) {
	if s.deps.Base == nil {
		return nil, errNoKnowledgeBase
	}
	n, err := s.deps.Base.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{"count": n}, nil
}

// === Extraction Handlers ===

type detectAndRefineArgs struct {
	Path      string `json:"path"`
	DrawBoxes bool   `json:"draw_boxes"`
}

type detectAndRefineResult struct {
	Tile    string                `json:"tile"`
	Symbols []refine.Symbol       `json:"symbols"`
	Report  refine.Report         `json:"report"`
	Overlay *imaging.EncodedImage `json:"overlay,omitempty"`
}

func (s *Server) handleDetectAndRefine(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.deps.Detector == nil {
		return nil, errNoDetector
	}
	if s.deps.Engine == nil {
		return nil, perrors.NewInvalidConfigurationError("refine", "no refinement engine configured")
	}
	var a detectAndRefineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	tile := filepath.Base(a.Path)
	raws, err := s.deps.Detector.Detect(ctx, img)
	if err != nil {
		return nil, perrors.NewDetectionError(tile, err)
	}
	symbols, report := s.deps.Engine.Refine(ctx, img, raws, s.deps.Detector.Format())

	res := &detectAndRefineResult{Tile: tile, Symbols: symbols, Report: report}
	if res.Symbols == nil {
		res.Symbols = []refine.Symbol{}
	}
	if a.DrawBoxes {
		boxes := make([]image.Rectangle, 0, len(symbols))
		for _, sym := range symbols {
			boxes = append(boxes, image.Rect(int(sym.BBox[0]), int(sym.BBox[1]), int(sym.BBox[2]), int(sym.BBox[3])))
		}
		res.Overlay, err = imaging.DrawBoxes(img, boxes, "#00A0FF")
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type runPipelineArgs struct {
	TilesDir string `json:"tiles_dir"`
	Image    string `json:"image"`
	SourceID string `json:"source_id"`
	TileSize int    `json:"tile_size"`
	Overlap  *int   `json:"overlap"`
	Output   string `json:"output"`
	DelayMS  *int   `json:"delay_ms"`
}

type runPipelineResult struct {
	pipeline.Summary
	Output       string `json:"output"`
	TotalTiles   int    `json:"total_tiles"`
	TotalSymbols int    `json:"total_symbols"`
}

func (s *Server) handleRunPipeline(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.deps.Detector == nil {
		return nil, errNoDetector
	}
	var a runPipelineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var delay time.Duration
	if s.deps.Config != nil {
		if a.TilesDir == "" {
			a.TilesDir = s.deps.Config.Pipeline.TilesDir
		}
		if a.Output == "" {
			a.Output = s.deps.Config.Pipeline.Output
		}
		delay = s.deps.Config.Pipeline.Delay
	}
	if a.DelayMS != nil {
		delay = time.Duration(*a.DelayMS) * time.Millisecond
	}

	source, err := s.runSource(a)
	if err != nil {
		return nil, err
	}
	driver, err := pipeline.NewDriver(pipeline.Options{
		Source:   source,
		Detector: s.deps.Detector,
		Engine:   s.deps.Engine,
		Results:  pipeline.ResultFile{Path: a.Output},
		Delay:    delay,
		Metrics:  s.deps.Metrics,
	})
	if err != nil {
		return nil, err
	}
	set, err := driver.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &runPipelineResult{
		Summary:      driver.Summary(),
		Output:       a.Output,
		TotalTiles:   set.Len(),
		TotalSymbols: set.SymbolCount(),
	}, nil
}

// runSource tiles a.Image in memory when given, otherwise reads a.TilesDir.
func (s *Server) runSource(a runPipelineArgs) (pipeline.TileSource, error) {
	if a.Image == "" {
		return pipeline.DirSource{Dir: a.TilesDir}, nil
	}
	size, overlap := s.tiling(a.TileSize, a.Overlap)
	if a.SourceID == "" {
		a.SourceID = sourceIDFromPath(a.Image)
	}
	img, err := s.cache.Load(a.Image)
	if err != nil {
		return nil, err
	}
	tiles, err := imaging.TileImage(img, a.SourceID, size, overlap)
	if err != nil {
		return nil, err
	}
	return pipeline.NewMemorySource(tiles), nil
}

type getResultsArgs struct {
	Output string `json:"output"`
	Tile   string `json:"tile"`
}

func (s *Server) handleGetResults(args json.RawMessage) (interface{}, error) {
	var a getResultsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Output == "" && s.deps.Config != nil {
		a.Output = s.deps.Config.Pipeline.Output
	}
	if a.Output == "" {
		return nil, perrors.NewInvalidConfigurationError("pipeline.output", "no result file given")
	}

	set, err := pipeline.ResultFile{Path: a.Output}.Load()
	if err != nil {
		return nil, err
	}
	if a.Tile == "" {
		results := set.Results()
		if results == nil {
			results = []pipeline.TileResult{}
		}
		return results, nil
	}
	symbols, ok := set.Get(a.Tile)
	if !ok {
		return nil, fmt.Errorf("tile %q not in %s", a.Tile, a.Output)
	}
	return pipeline.TileResult{Tile: a.Tile, Symbols: symbols}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
