// Package engine is the conversational core. Engine owns the session store
// and the tool set; transports call Chat and never touch the internals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/kopibot/kopibot/engine/calc"
	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/compose"
	"github.com/kopibot/kopibot/engine/intent"
	"github.com/kopibot/kopibot/engine/metrics"
	"github.com/kopibot/kopibot/engine/outlet"
	"github.com/kopibot/kopibot/engine/planner"
	"github.com/kopibot/kopibot/engine/product"
	"github.com/kopibot/kopibot/engine/session"
	"github.com/kopibot/kopibot/engine/slot"
)

// DefaultTurnTimeout bounds one turn end to end.
const DefaultTurnTimeout = 30 * time.Second

// MaxMessageChars is the inbound message length cap, in runes.
const MaxMessageChars = 1000

// Input validation errors. These are rejected before classification and
// leave the session untouched.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageChars)
)

// Request is one inbound turn.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the turn outcome. SessionID is always populated, even when
// the caller omitted it.
type Response struct {
	Message    string  `json:"message"`
	SessionID  string  `json:"session_id"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Engine wires the classifier, extractor, tools, planner and composer
// around a session store.
type Engine struct {
	sessions   *session.Store
	classifier *intent.Classifier
	extractor  *slot.Extractor
	retriever  *product.Retriever
	saleIndex  *product.Retriever
	outlets    *outlet.Engine
	planner    *planner.Planner
	composer   *compose.Composer
	exporter   *metrics.Exporter
	logger     *slog.Logger

	turnTimeout   time.Duration
	now           func() time.Time
	evictionsSeen uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTurnTimeout overrides the per-turn deadline.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.turnTimeout = d }
}

// WithMetrics attaches a Prometheus exporter.
func WithMetrics(m *metrics.Exporter) Option {
	return func(e *Engine) { e.exporter = m }
}

// WithSessionStore replaces the default store, for custom timeouts or
// injected clocks in tests.
func WithSessionStore(st *session.Store) Option {
	return func(e *Engine) { e.sessions = st }
}

// WithComposer replaces the composer, for clock injection in tests.
func WithComposer(c *compose.Composer) Option {
	return func(e *Engine) { e.composer = c }
}

// WithSemanticIndex enables semantic product ranking.
func WithSemanticIndex(idx product.SemanticIndex) Option {
	return func(e *Engine) {
		e.retriever = product.NewRetriever(e.retriever.All(), product.WithSemanticIndex(idx))
	}
}

// New builds an engine over immutable catalogue snapshots.
func New(products []catalog.Product, registry outlet.Registry, opts ...Option) *Engine {
	e := &Engine{
		retriever:   product.NewRetriever(products),
		turnTimeout: DefaultTurnTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.sessions == nil {
		e.sessions = session.NewStore(e.logger)
	}
	if e.composer == nil {
		e.composer = compose.New()
	}
	e.classifier = intent.NewClassifier(e.logger)
	e.extractor = slot.NewExtractor()
	e.outlets = outlet.NewEngine(registry, e.logger)
	e.planner = planner.New(e.logger)
	e.saleIndex = product.NewRetriever(e.retriever.OnSale())
	return e
}

// Sessions exposes the store for the admin surface.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Chat runs one turn. Validation failures return an error and do not touch
// the session; everything past validation produces a reply, never an error.
func (e *Engine) Chat(ctx context.Context, req Request) (Response, error) {
	if req.Message == "" {
		return Response{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageChars {
		return Response{}, ErrMessageTooLong
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	started := e.now()
	resp := Response{SessionID: sessionID}
	err := e.sessions.WithTurn(sessionID, func(s *session.Session) error {
		resp = e.runTurn(ctx, s, req.Message)
		resp.SessionID = sessionID
		return nil
	})
	if err != nil {
		// the store never fails today; keep the guard for future backends
		e.logger.Error("session store", "error", err)
		resp.Message = e.composer.Trouble()
	}

	if e.exporter != nil {
		e.exporter.RecordTurn(resp.Intent, e.now().Sub(started), resp.Intent != string(intent.Unclear))
		e.exporter.SetActiveSessions(e.sessions.Len())
		e.reportEvictions()
	}
	return resp, nil
}

// reportEvictions forwards the store's eviction total to the counter as a
// delta since the last report.
func (e *Engine) reportEvictions() {
	for {
		seen := atomic.LoadUint64(&e.evictionsSeen)
		total := e.sessions.Evictions()
		if total <= seen {
			return
		}
		if atomic.CompareAndSwapUint64(&e.evictionsSeen, seen, total) {
			e.exporter.AddEvictions(int(total - seen))
			return
		}
	}
}

// runTurn executes the pipeline while the session lock is held. Panics from
// tools become an InternalError fallback reply; the assistant turn is still
// recorded so the history stays consistent.
func (e *Engine) runTurn(ctx context.Context, s *session.Session, message string) (resp Response) {
	userTurn := session.NewTurn(session.RoleUser, message)
	s.AppendTurn(userTurn)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn panic", "session_id", s.ID, "panic", fmt.Sprint(r))
			resp = Response{Message: e.composer.Trouble(), Intent: string(intent.Unclear)}
			assistant := session.NewTurn(session.RoleAssistant, resp.Message)
			s.AppendTurn(assistant)
		}
	}()

	cls := e.classifier.Classify(message, intent.Context{LastIntent: s.LastIntent})
	slots := e.extractor.Extract(message)

	pctx := planner.Context{
		LastIntent:        s.LastIntent,
		HasShownProducts:  len(s.LastShownProducts) > 0,
		HasShownOutlets:   len(s.LastShownOutlets) > 0,
		HasSavedContext:   s.SavedContext != nil,
		PreferredLocation: s.PreferredLocation,
	}
	plan := e.planner.Plan(cls, slots, message, pctx)
	if plan.TopicSwitch {
		s.SaveContext(e.now())
	}

	var parts []string
	var toolUsed string
	var shownProducts []catalog.Product
	var shownOutlets []catalog.Outlet
	for _, act := range plan.Actions {
		if expired(ctx) {
			// deadline: the user turn stays, the assistant turn and
			// last_intent do not move
			return Response{Message: e.composer.Trouble(), Intent: string(cls.Intent), Confidence: cls.Confidence}
		}
		out := e.execute(ctx, s, act)
		parts = append(parts, out.text)
		if out.tool != "" {
			toolUsed = out.tool
		}
		if len(out.products) > 0 {
			shownProducts = out.products
		}
		if len(out.outlets) > 0 {
			shownOutlets = out.outlets
		}
	}
	if expired(ctx) {
		return Response{Message: e.composer.Trouble(), Intent: string(cls.Intent), Confidence: cls.Confidence}
	}

	reply := compose.Join(parts...)

	assistant := session.NewTurn(session.RoleAssistant, reply)
	assistant.Intent = cls.Intent
	assistant.Confidence = cls.Confidence
	assistant.ToolUsed = toolUsed
	s.AppendTurn(assistant)

	if cls.Intent.Conversational() {
		s.LastIntent = cls.Intent
	}
	s.SetShownProducts(shownProducts)
	s.SetShownOutlets(shownOutlets)
	// rejected and unintelligible turns must not steer later searches
	if cls.Intent.Conversational() {
		e.rememberSlots(s, slots, shownProducts, shownOutlets)
	}

	return Response{Message: reply, Intent: string(cls.Intent), Confidence: cls.Confidence}
}

// expired reports whether the turn deadline has passed, without waiting on
// the context's timer tick.
func expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	dl, ok := ctx.Deadline()
	return ok && !time.Now().Before(dl)
}

// actionResult is one executed action's contribution to the turn.
type actionResult struct {
	text     string
	tool     string
	products []catalog.Product
	outlets  []catalog.Outlet
}

func (e *Engine) execute(ctx context.Context, s *session.Session, act planner.Action) actionResult {
	started := e.now()
	res := e.dispatch(ctx, s, act)
	if e.exporter != nil && res.tool != "" {
		e.exporter.RecordToolCall(res.tool, e.now().Sub(started), true, "")
	}
	return res
}

func (e *Engine) dispatch(ctx context.Context, s *session.Session, act planner.Action) actionResult {
	switch act.Type {
	case planner.ActProvideAnswer:
		return e.provideAnswer(s, act.Answer)
	case planner.ActProductSearch:
		return e.productSearch(ctx, s, act)
	case planner.ActOutletSearch:
		return e.outletSearch(ctx, s, act)
	case planner.ActCalculator:
		return e.calculate(ctx, s, act)
	case planner.ActAskFollowup:
		return actionResult{text: e.composer.Followup(act.Hint)}
	case planner.ActReject:
		e.logger.Warn("malicious input rejected", "session_id", s.ID)
		return actionResult{text: e.composer.Reject()}
	default:
		return actionResult{text: e.composer.Clarify()}
	}
}

func (e *Engine) provideAnswer(s *session.Session, kind planner.AnswerKind) actionResult {
	switch kind {
	case planner.AnswerPromo:
		return actionResult{text: e.composer.PromoSummary(e.retriever.OnSale()), tool: "promotions"}
	case planner.AnswerRecall:
		products, outlets := s.LastShownProducts, s.LastShownOutlets
		if len(products) == 0 && len(outlets) == 0 && s.SavedContext != nil {
			products, outlets = s.SavedContext.LastShownProducts, s.SavedContext.LastShownOutlets
		}
		return actionResult{text: e.composer.Recall(products, outlets)}
	default:
		return actionResult{text: e.composer.Answer(kind)}
	}
}

func (e *Engine) productSearch(ctx context.Context, s *session.Session, act planner.Action) actionResult {
	index := e.retriever
	if act.PromoOnly {
		index = e.saleIndex
	}
	slots := stickySlots(s, act.Slots)
	results := index.Search(ctx, act.Utterance, slots, 0)
	if len(results) == 0 {
		return actionResult{text: e.composer.EmptyProducts(slots), tool: "product_search"}
	}
	text := e.composer.ProductList(results)
	// a budget-only query that filtered nothing out needs a narrowing
	// question attached
	if !act.PromoOnly && slots.Budget != nil {
		all := e.retriever.All()
		if full := e.retriever.Search(ctx, act.Utterance, slots, len(all)); len(full) == len(all) {
			text = compose.Join(text, e.composer.Followup(planner.HintProductType))
		}
	}
	return actionResult{text: text, tool: "product_search", products: results}
}

// stickySlots fills slot families the utterance left open from the
// session's remembered preferences and budget. An explicit mention in the
// current turn always wins, and "show all" requests stay unfiltered.
func stickySlots(s *session.Session, slots slot.Slots) slot.Slots {
	if slots.ShowAll {
		return slots
	}
	if len(slots.Materials) == 0 && s.Preferences.Material != "" {
		slots.Materials = []catalog.Material{s.Preferences.Material}
	}
	if slots.Capacity == slot.CapacityNone && s.Preferences.Capacity != slot.CapacityNone {
		slots.Capacity = s.Preferences.Capacity
	}
	if len(slots.Features) == 0 && len(s.Preferences.Features) > 0 {
		slots.Features = append([]catalog.Feature(nil), s.Preferences.Features...)
	}
	if slots.Budget == nil && s.Budget != nil {
		slots.Budget = s.Budget
	}
	return slots
}

func (e *Engine) outletSearch(ctx context.Context, s *session.Session, act planner.Action) actionResult {
	if act.NarrowShown {
		kept := outlet.Narrow(s.LastShownOutlets, act.Slots)
		if len(kept) == 0 {
			return actionResult{
				text: e.composer.EmptyOutlets(outlet.Result{Applied: describeServices(act.Slots)}),
				tool: "outlet_search",
			}
		}
		if act.Slots.TimeQuery != slot.TimeNone {
			return actionResult{text: e.composer.HoursReply(kept[0], act.Slots.TimeQuery), tool: "outlet_search", outlets: kept}
		}
		return actionResult{text: e.composer.Outlets(kept), tool: "outlet_search", outlets: kept}
	}

	res, err := e.outlets.Search(ctx, act.Slots, 0)
	if err != nil {
		e.logger.Error("outlet search", "error", err)
		return actionResult{text: e.composer.Trouble(), tool: "outlet_search"}
	}
	if act.Slots.TimeQuery != slot.TimeNone && len(res.Outlets) == 1 {
		return actionResult{text: e.composer.HoursReply(res.Outlets[0], act.Slots.TimeQuery), tool: "outlet_search", outlets: res.Outlets}
	}
	return actionResult{text: e.composer.OutletList(res), tool: "outlet_search", outlets: res.Outlets}
}

func (e *Engine) calculate(ctx context.Context, s *session.Session, act planner.Action) actionResult {
	result, err := calc.Evaluate(act.Utterance)
	if err == nil {
		return actionResult{text: e.composer.Calculation(result), tool: "calculator"}
	}
	if calc.KindOf(err) == calc.ErrNotACalculation {
		// catalogue nouns make this a product query in disguise
		fallback := e.planner.OnNotACalculation(act.Utterance, act.Slots)
		if fallback.Type == planner.ActProductSearch {
			return e.productSearch(ctx, s, fallback)
		}
		return actionResult{text: e.composer.Followup(fallback.Hint), tool: "calculator"}
	}
	if e.exporter != nil {
		e.exporter.RecordToolCall("calculator", 0, false, string(calc.KindOf(err)))
	}
	return actionResult{text: e.composer.CalcError(err), tool: "calculator"}
}

// rememberSlots keeps sticky preferences and context entities current.
func (e *Engine) rememberSlots(s *session.Session, slots slot.Slots, products []catalog.Product, outlets []catalog.Outlet) {
	if len(slots.Locations) > 0 {
		s.ContextLocation = slots.Locations[0]
		s.PreferredLocation = slots.Locations[0]
	}
	if len(slots.Materials) > 0 {
		s.Preferences.Material = slots.Materials[0]
	}
	if slots.Capacity != slot.CapacityNone {
		s.Preferences.Capacity = slots.Capacity
	}
	if len(slots.Features) > 0 {
		s.Preferences.Features = append([]catalog.Feature(nil), slots.Features...)
	}
	if slots.Budget != nil {
		s.Budget = slots.Budget
	}
	for _, p := range products {
		s.RememberEntities(p.Name)
	}
	for _, o := range outlets {
		s.RememberEntities(o.Name)
	}
}

func describeServices(s slot.Slots) []string {
	var out []string
	for _, svc := range s.Services {
		out = append(out, "service: "+string(svc))
	}
	return out
}
