package chrono

import (
	"fmt"
	"sort"
)

// WorldView is the world query interface the engine consumes. Probes are
// cheap reads against current state; the engine never caches them across
// turns.
type WorldView interface {
	CellProbeAt(c Cell) CellProbe
	EntityProbeOf(id string) EntityProbe
	IsSuperposed(ref Ref) bool
	CollapseProbability(ref Ref) float64
	EntangledPartner(ref Ref) (Ref, bool)
}

type ApplyResult struct {
	Success     bool     `json:"success"`
	SideEffects []string `json:"side_effects,omitempty"`
}

// WorldMutator is the world mutation interface the engine consumes. The
// engine never touches world state directly; it requests application and
// reacts to the reported result on later turns.
type WorldMutator interface {
	Apply(a Action) ApplyResult
	FixCollapse(ref Ref, outcome CollapseOutcome)
	SpawnEchoEntity(echoID string, at Cell) (entityID string, ok bool)
	RemoveEchoEntity(entityID string)
}

// Config carries the balance inputs. All values come from tuning; nothing
// here is hardcoded in the engine.
type Config struct {
	EnergyInitial      int
	EnergyMax          int
	EnergyRegenPerTurn int

	RecordCost     int
	EchoSpawnCost  int
	EchoUpkeepCost int

	MaxActiveEchoes int
	// EchoMaxLifetimeTurns bounds an echo's life; 0 means unbounded.
	EchoMaxLifetimeTurns int
}

// Engine is the turn driver: one instance per run, touched only by that
// run's goroutine. The surrounding loop calls BeginTurn,
// RecordPlayerAction, AdvanceEchoes, EndTurn in fixed order once per game
// turn.
type Engine struct {
	cfg    Config
	view   WorldView
	mut    WorldMutator
	roller Roller

	store  *TimelineStore
	ledger *EnergyLedger

	turn      uint64
	recording TimelineID

	echoes   map[string]*Echo
	nextEcho uint64

	events     []ParadoxEvent
	turnEvents []ParadoxEvent
	eventSeq   uint64

	collapses map[collapseKey]CollapseOutcome

	corrupt error
}

func NewEngine(cfg Config, view WorldView, mut WorldMutator, roller Roller) *Engine {
	return &Engine{
		cfg:       cfg,
		view:      view,
		mut:       mut,
		roller:    roller,
		store:     NewTimelineStore(),
		ledger:    NewEnergyLedger(cfg.EnergyInitial, cfg.EnergyMax),
		echoes:    make(map[string]*Echo),
		collapses: make(map[collapseKey]CollapseOutcome),
	}
}

func (e *Engine) Turn() uint64          { return e.turn }
func (e *Engine) Energy() int           { return e.ledger.Balance() }
func (e *Engine) Recording() TimelineID { return e.recording }
func (e *Engine) Store() *TimelineStore { return e.store }

// ParadoxHistory returns the full audit trail, oldest first.
func (e *Engine) ParadoxHistory() []ParadoxEvent {
	out := make([]ParadoxEvent, len(e.events))
	copy(out, e.events)
	return out
}

// StartRecording opens a fresh timeline whose first record lands on the next
// turn, and makes it the live recording target.
func (e *Engine) StartRecording() TimelineID {
	e.recording = e.store.Create(e.turn + 1)
	return e.recording
}

// ArchiveRecording marks the live timeline read-only, e.g. at run end.
// Echoes bound to it keep replaying.
func (e *Engine) ArchiveRecording() error {
	if e.recording == "" {
		return fmt.Errorf("no live recording: %w", ErrUnknownTimeline)
	}
	return e.store.Archive(e.recording)
}

// BeginTurn opens the next simulation turn. Collapse memos reset here:
// superposed state is re-rollable each turn, fixed within one.
func (e *Engine) BeginTurn() {
	e.turn++
	e.turnEvents = e.turnEvents[:0]
	clear(e.collapses)
}

// RecordPlayerAction appends the live player's action to the recording
// timeline, debits the recording cost, and applies the action to the world.
// The fingerprint is captured before application so it reflects the
// preconditions the action was chosen under.
func (e *Engine) RecordPlayerAction(a Action) (ApplyResult, error) {
	if e.corrupt != nil {
		return ApplyResult{}, e.corrupt
	}
	if e.recording == "" {
		return ApplyResult{}, fmt.Errorf("no live recording: %w", ErrUnknownTimeline)
	}
	a.Turn = e.turn
	if err := a.Validate(); err != nil {
		return ApplyResult{}, fmt.Errorf("%v: %w", err, ErrNotFound)
	}

	actorPos := e.view.EntityProbeOf(a.Actor).Pos
	e.collapseInvolved(a, actorPos)
	fp := e.captureFingerprint(a, actorPos)

	if err := e.ledger.TrySpend(e.cfg.RecordCost); err != nil {
		return ApplyResult{}, err
	}
	if err := e.store.Record(e.recording, a, fp); err != nil {
		e.ledger.Credit(e.cfg.RecordCost)
		return ApplyResult{}, err
	}
	return e.mut.Apply(a), nil
}

// EndTurn closes the turn: invariant check, per-turn energy regeneration,
// and the turn's paradox events handed back to the caller.
func (e *Engine) EndTurn() ([]ParadoxEvent, error) {
	if e.corrupt != nil {
		return nil, e.corrupt
	}
	if err := e.ledger.check(); err != nil {
		e.corrupt = err
		return nil, err
	}
	e.ledger.Credit(e.cfg.EnergyRegenPerTurn)
	out := make([]ParadoxEvent, len(e.turnEvents))
	copy(out, e.turnEvents)
	return out, nil
}

// SpawnEcho materializes a recorded timeline as a live echo starting at
// startOffset, spending spawn energy. The echo's mirror entity appears at
// the position the timeline's agent held at that offset.
func (e *Engine) SpawnEcho(id TimelineID, startOffset int) (string, error) {
	if e.corrupt != nil {
		return "", e.corrupt
	}
	n, err := e.store.Len(id)
	if err != nil {
		return "", err
	}
	if startOffset < 0 || startOffset >= n {
		return "", fmt.Errorf("offset %d of %d: %w", startOffset, n, ErrNotFound)
	}
	if e.cfg.MaxActiveEchoes > 0 && e.activeCount() >= e.cfg.MaxActiveEchoes {
		return "", fmt.Errorf("%d active: %w", e.activeCount(), ErrEchoLimit)
	}
	if err := e.ledger.TrySpend(e.cfg.EchoSpawnCost); err != nil {
		return "", err
	}

	rec, err := e.store.Read(id, startOffset)
	if err != nil {
		e.ledger.Credit(e.cfg.EchoSpawnCost)
		return "", err
	}
	e.nextEcho++
	echoID := fmt.Sprintf("E%03d", e.nextEcho)
	entityID, ok := e.mut.SpawnEchoEntity(echoID, rec.Fingerprint.Actor.Pos)
	if !ok {
		e.nextEcho--
		e.ledger.Credit(e.cfg.EchoSpawnCost)
		return "", fmt.Errorf("spawn %s at %v: %w", echoID, rec.Fingerprint.Actor.Pos, ErrSpawnBlocked)
	}
	e.echoes[echoID] = &Echo{
		ID:          echoID,
		TimelineID:  id,
		Cursor:      startOffset,
		CreatedTurn: e.turn,
		State:       EchoActive,
		EntityID:    entityID,
	}
	return echoID, nil
}

func (e *Engine) DismissEcho(id string) error {
	ec, ok := e.echoes[id]
	if !ok || !ec.alive() {
		return fmt.Errorf("echo %s: %w", id, ErrNotFound)
	}
	e.expire(ec, ExpireDismissed)
	return nil
}

// ActiveEchoes returns live echoes in scheduler order.
func (e *Engine) ActiveEchoes() []EchoSummary {
	out := make([]EchoSummary, 0, len(e.echoes))
	for _, ec := range e.scheduleOrder() {
		if !ec.alive() {
			continue
		}
		n, _ := e.store.Len(ec.TimelineID)
		out = append(out, EchoSummary{
			ID:          ec.ID,
			TimelineID:  ec.TimelineID,
			Cursor:      ec.Cursor,
			LogLen:      n,
			CreatedTurn: ec.CreatedTurn,
			State:       ec.State.String(),
			Reason:      string(ec.Reason),
			EntityID:    ec.EntityID,
		})
	}
	return out
}

func (e *Engine) activeCount() int {
	n := 0
	for _, ec := range e.echoes {
		if ec.alive() {
			n++
		}
	}
	return n
}

// scheduleOrder is the concurrency contract: ascending creation turn, ties
// broken by echo id, regardless of map insertion order.
func (e *Engine) scheduleOrder() []*Echo {
	out := make([]*Echo, 0, len(e.echoes))
	for _, ec := range e.echoes {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTurn != out[j].CreatedTurn {
			return out[i].CreatedTurn < out[j].CreatedTurn
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) expire(ec *Echo, reason ExpireReason) {
	if !ec.alive() {
		return
	}
	ec.State = EchoExpired
	ec.Reason = reason
	if ec.EntityID != "" {
		e.mut.RemoveEchoEntity(ec.EntityID)
	}
}

// collapseInvolved resolves superposition on every cell/entity the action
// touches, before any fingerprint is taken.
func (e *Engine) collapseInvolved(a Action, actorPos Cell) {
	e.collapseRef(CellRef(actorPos))
	switch a.Kind {
	case ActMove:
		e.collapseRef(CellRef(actorPos.Add(a.Move.DX, a.Move.DY)))
	case ActAttack:
		e.collapseRef(EntityRef(a.Attack.TargetID))
	case ActUseItem:
		e.collapseRef(CellRef(a.Use.Target))
	}
}

// captureFingerprint probes exactly the observable slice the action's
// legality depends on.
func (e *Engine) captureFingerprint(a Action, actorPos Cell) Fingerprint {
	fp := Fingerprint{Actor: e.view.CellProbeAt(actorPos)}
	switch a.Kind {
	case ActMove:
		t := e.view.CellProbeAt(actorPos.Add(a.Move.DX, a.Move.DY))
		fp.Target = &t
	case ActAttack:
		ep := e.view.EntityProbeOf(a.Attack.TargetID)
		fp.Entity = &ep
	case ActUseItem:
		t := e.view.CellProbeAt(a.Use.Target)
		fp.Target = &t
	}
	return fp
}
