package chrono

import (
	"errors"
	"testing"
)

func testConfig() Config {
	return Config{
		EnergyInitial: 1000,
		EnergyMax:     1000,
		RecordCost:    1,
		EchoSpawnCost: 10,
	}
}

func newTestEngine(w *stubWorld, cfg Config, roller Roller) *Engine {
	if roller == nil {
		roller = SplitMixRoller{Seed: 42}
	}
	e := NewEngine(cfg, w, w, roller)
	e.StartRecording()
	return e
}

func mv(actor string, dx, dy int) Action {
	return Action{Kind: ActMove, Actor: actor, Move: &MovePayload{DX: dx, DY: dy}}
}

func atk(actor, target string) Action {
	return Action{Kind: ActAttack, Actor: actor, Attack: &AttackPayload{TargetID: target}}
}

func wait(actor string) Action {
	return Action{Kind: ActWait, Actor: actor}
}

func playTurn(t *testing.T, e *Engine, a Action) []ParadoxEvent {
	t.Helper()
	e.BeginTurn()
	if _, err := e.RecordPlayerAction(a); err != nil {
		t.Fatalf("turn %d record: %v", e.Turn(), err)
	}
	if err := e.AdvanceEchoes(); err != nil {
		t.Fatalf("turn %d advance: %v", e.Turn(), err)
	}
	evs, err := e.EndTurn()
	if err != nil {
		t.Fatalf("turn %d end: %v", e.Turn(), err)
	}
	return evs
}

func TestReplayNoDivergence_AllConsistent(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	for i := 0; i < 3; i++ {
		if evs := playTurn(t, e, mv("P1", 1, 0)); len(evs) != 0 {
			t.Fatalf("events during recording: %v", evs)
		}
	}
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if got := w.entities["G_"+echoID].pos; got != (Cell{0, 0}) {
		t.Fatalf("echo spawn pos = %v", got)
	}

	// Player walks away; echo retraces the recorded path untouched.
	for i := 0; i < 3; i++ {
		if evs := playTurn(t, e, mv("P1", 0, 1)); len(evs) != 0 {
			t.Fatalf("turn %d: unexpected paradox events: %+v", e.Turn(), evs)
		}
	}
	ec := e.echoes[echoID]
	if ec.Cursor != 3 || !ec.alive() {
		t.Fatalf("echo cursor=%d state=%v", ec.Cursor, ec.State)
	}
	if got := w.entities["G_"+echoID].pos; got != (Cell{3, 0}) {
		t.Fatalf("echo pos = %v, want (3,0)", got)
	}

	// Log exhausted: next pass expires without a read.
	playTurn(t, e, wait("P1"))
	if ec.State != EchoExpired || ec.Reason != ExpireNormal {
		t.Fatalf("echo state=%v reason=%q", ec.State, ec.Reason)
	}
	if _, ok := w.entities["G_"+echoID]; ok {
		t.Fatalf("expired echo entity still in world")
	}
	if n := len(e.ParadoxHistory()); n != 0 {
		t.Fatalf("paradox history = %d entries, want 0", n)
	}
}

func TestSchedulerOrder_CreationOrderWins(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	var tls []TimelineID
	for i := 0; i < 3; i++ {
		w.entities["P1"].pos = Cell{X: i, Y: 0}
		for j := 0; j < 8; j++ {
			playTurn(t, e, wait("P1"))
		}
		tls = append(tls, e.Recording())
		if err := e.ArchiveRecording(); err != nil {
			t.Fatalf("archive: %v", err)
		}
		e.StartRecording()
	}
	w.entities["P1"].pos = Cell{5, 5}

	// One echo per turn so creation turns are strictly increasing.
	var ghosts []string
	for _, tl := range tls {
		playTurn(t, e, wait("P1"))
		id, err := e.SpawnEcho(tl, 0)
		if err != nil {
			t.Fatalf("spawn %s: %v", tl, err)
		}
		ghosts = append(ghosts, "G_"+id)
	}

	for turn := 0; turn < 4; turn++ {
		w.applied = w.applied[:0]
		playTurn(t, e, wait("P1"))
		want := append([]string{"P1"}, ghosts...)
		if len(w.applied) != len(want) {
			t.Fatalf("applied %d actions, want %d", len(w.applied), len(want))
		}
		for i, a := range w.applied {
			if a.Actor != want[i] {
				t.Fatalf("turn %d slot %d: actor %s, want %s", turn, i, a.Actor, want[i])
			}
		}
	}
}

func TestSoftParadox_AttackOnDeadTarget(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	w.entities["M1"] = &stubEntity{pos: Cell{1, 0}, alive: true, hostile: true}
	e := newTestEngine(w, testConfig(), nil)

	playTurn(t, e, atk("P1", "M1")) // kills M1
	playTurn(t, e, mv("P1", 0, 1))
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	evs := playTurn(t, e, wait("P1"))
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	ev := evs[0]
	if ev.Resolution != ResolutionSoftWait {
		t.Fatalf("resolution = %q", ev.Resolution)
	}
	if ev.Reason != "target already dead" {
		t.Fatalf("reason = %q", ev.Reason)
	}
	if ev.Executed != ActWait {
		t.Fatalf("executed = %q", ev.Executed)
	}
	if ev.EchoID != echoID || ev.Action.Kind != ActAttack {
		t.Fatalf("event = %+v", ev)
	}
	ec := e.echoes[echoID]
	if !ec.alive() || ec.Cursor != 1 {
		t.Fatalf("echo state=%v cursor=%d, want active cursor 1", ec.State, ec.Cursor)
	}
}

func TestBenignParadox_TargetMovedStillAdjacent(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	w.entities["M1"] = &stubEntity{pos: Cell{1, 0}, alive: true, hostile: true}
	e := newTestEngine(w, testConfig(), nil)

	playTurn(t, e, atk("P1", "M1")) // kills M1
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()

	// M1 is back up on the other flank: every dependent check passes, only
	// the recorded target position drifted.
	w.entities["M1"].alive = true
	w.entities["M1"].pos = Cell{0, 1}
	w.entities["P1"].pos = Cell{5, 5}

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	evs := playTurn(t, e, wait("P1"))
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1: %+v", len(evs), evs)
	}
	ev := evs[0]
	if ev.Resolution != ResolutionBenign {
		t.Fatalf("resolution = %q", ev.Resolution)
	}
	if ev.Executed != ActAttack {
		t.Fatalf("executed = %q, want the unmodified attack", ev.Executed)
	}
	if ev.EchoID != echoID || ev.TimelineID != tl || ev.Action.Kind != ActAttack {
		t.Fatalf("event = %+v", ev)
	}
	if w.entities["M1"].alive {
		t.Fatalf("replayed attack did not land")
	}
	ec := e.echoes[echoID]
	if !ec.alive() || ec.Cursor != 1 {
		t.Fatalf("echo state=%v cursor=%d, want active cursor 1", ec.State, ec.Cursor)
	}
}

func TestFatalParadox_DestinationDestroyed(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	playTurn(t, e, mv("P1", 1, 0))
	playTurn(t, e, mv("P1", 0, 1))
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()

	w.tile(Cell{1, 0}).destroyed = true

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	evs := playTurn(t, e, wait("P1"))
	if len(evs) != 1 || evs[0].Resolution != ResolutionFatal {
		t.Fatalf("events = %+v, want one fatal", evs)
	}
	if evs[0].Executed != "" {
		t.Fatalf("fatal event executed = %q, want empty", evs[0].Executed)
	}
	ec := e.echoes[echoID]
	if ec.State != EchoExpired || ec.Reason != ExpireFatal {
		t.Fatalf("echo state=%v reason=%q", ec.State, ec.Reason)
	}
	if ec.Cursor != 0 {
		t.Fatalf("fatal paradox advanced cursor to %d", ec.Cursor)
	}
	if _, ok := w.entities["G_"+echoID]; ok {
		t.Fatalf("collapsed echo entity still in world")
	}
}

func TestEntanglement_PartnerFixedInSameCall(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), fixedRoller(0.1))

	playTurn(t, e, mv("P1", 1, 0))
	playTurn(t, e, mv("P1", 1, 0))
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()
	w.entities["P1"].pos = Cell{5, 5}

	a, b := CellRef(Cell{2, 0}), CellRef(Cell{3, 0})
	w.superposed[a] = 0.5
	w.superposed[b] = 0.5
	w.entangled[a] = b
	w.entangled[b] = a

	if _, err := e.SpawnEcho(tl, 0); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	playTurn(t, e, wait("P1")) // echo steps to (1,0), nothing superposed yet
	evs := playTurn(t, e, wait("P1"))

	// Roll 0.1 < 0.5: the destination collapses VOID, the partner must be
	// fixed complementary within the same resolver call.
	if len(w.fixes) != 2 {
		t.Fatalf("fixes = %+v, want 2", w.fixes)
	}
	if w.fixes[0] != (stubFix{ref: a, out: CollapseVoid}) {
		t.Fatalf("first fix = %+v", w.fixes[0])
	}
	if w.fixes[1] != (stubFix{ref: b, out: CollapseStable}) {
		t.Fatalf("partner fix = %+v", w.fixes[1])
	}
	if w.CellProbeAt(Cell{3, 0}).Destroyed {
		t.Fatalf("partner collapsed to VOID, want STABLE")
	}

	// Same-turn re-read comes from the memo: no re-roll, no new fix.
	out, ok := e.collapseRef(b)
	if !ok || out != CollapseStable {
		t.Fatalf("same-turn partner read = %v/%v", out, ok)
	}
	if len(w.fixes) != 2 {
		t.Fatalf("same-turn read re-fixed: %+v", w.fixes)
	}

	if len(evs) != 1 || evs[0].Resolution != ResolutionFatal {
		t.Fatalf("events = %+v, want one fatal (destination voided)", evs)
	}
}

func TestTimelineExhaustion_FiveStepLog(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	for i := 0; i < 5; i++ {
		playTurn(t, e, wait("P1"))
	}
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()
	w.entities["P1"].pos = Cell{5, 5}

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ec := e.echoes[echoID]

	for i := 1; i <= 5; i++ {
		playTurn(t, e, wait("P1"))
		if ec.Cursor != i {
			t.Fatalf("after step %d: cursor=%d", i, ec.Cursor)
		}
		if !ec.alive() {
			t.Fatalf("echo expired early at step %d", i)
		}
	}

	playTurn(t, e, wait("P1"))
	if ec.State != EchoExpired || ec.Reason != ExpireNormal {
		t.Fatalf("echo state=%v reason=%q, want expired normal", ec.State, ec.Reason)
	}
	if ec.Cursor != 5 {
		t.Fatalf("cursor=%d after expiry, want 5", ec.Cursor)
	}
	if n := len(e.ParadoxHistory()); n != 0 {
		t.Fatalf("paradox history = %d, want 0", n)
	}
}

func TestEchoVsEcho_LaterObservesEarlier(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	playTurn(t, e, mv("P1", 1, 0)) // T001: (0,0) -> (1,0)
	tl1 := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	w.entities["P1"].pos = Cell{2, 0}
	e.StartRecording()
	playTurn(t, e, mv("P1", -1, 0)) // T002: (2,0) -> (1,0)
	tl2 := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	w.entities["P1"].pos = Cell{5, 5}
	e.StartRecording()

	id1, err := e.SpawnEcho(tl1, 0)
	if err != nil {
		t.Fatalf("spawn 1: %v", err)
	}
	id2, err := e.SpawnEcho(tl2, 0)
	if err != nil {
		t.Fatalf("spawn 2: %v", err)
	}

	evs := playTurn(t, e, wait("P1"))

	// The first echo takes (1,0); the second observes it as part of the
	// world and degrades to a wait.
	if got := w.entities["G_"+id1].pos; got != (Cell{1, 0}) {
		t.Fatalf("echo1 pos = %v", got)
	}
	if got := w.entities["G_"+id2].pos; got != (Cell{2, 0}) {
		t.Fatalf("echo2 pos = %v, want unmoved", got)
	}
	if len(evs) != 1 || evs[0].EchoID != id2 || evs[0].Resolution != ResolutionSoftWait {
		t.Fatalf("events = %+v, want one soft:wait for %s", evs, id2)
	}
}

func TestEchoExpiresOnEnergyExhaustion(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	cfg := testConfig()
	cfg.EnergyInitial = 40
	cfg.EnergyMax = 40
	cfg.EchoUpkeepCost = 5
	e := newTestEngine(w, cfg, nil)

	for i := 0; i < 10; i++ {
		playTurn(t, e, wait("P1")) // 40 -> 30
	}
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()
	w.entities["P1"].pos = Cell{5, 5}

	echoID, err := e.SpawnEcho(tl, 0) // 30 -> 20
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ec := e.echoes[echoID]

	// Each turn costs 1 (record) + 5 (upkeep). The fourth upkeep debit
	// would need 5 against a balance of 1 and must be rejected whole.
	for i := 0; i < 3; i++ {
		playTurn(t, e, wait("P1"))
	}
	if e.Energy() != 2 {
		t.Fatalf("balance = %d, want 2", e.Energy())
	}
	playTurn(t, e, wait("P1"))
	if ec.State != EchoExpired || ec.Reason != ExpireEnergy {
		t.Fatalf("echo state=%v reason=%q, want expired energy", ec.State, ec.Reason)
	}
	if e.Energy() != 1 {
		t.Fatalf("balance = %d, want 1 (failed debit must not change it)", e.Energy())
	}
	// The step itself still applied before the upkeep debit.
	if ec.Cursor != 4 {
		t.Fatalf("cursor = %d, want 4", ec.Cursor)
	}
}

func TestEchoLifetimeCap(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	cfg := testConfig()
	cfg.EchoMaxLifetimeTurns = 2
	e := newTestEngine(w, cfg, nil)

	for i := 0; i < 8; i++ {
		playTurn(t, e, wait("P1"))
	}
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()
	w.entities["P1"].pos = Cell{5, 5}

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ec := e.echoes[echoID]

	playTurn(t, e, wait("P1"))
	playTurn(t, e, wait("P1"))
	if !ec.alive() {
		t.Fatalf("echo expired before lifetime cap")
	}
	playTurn(t, e, wait("P1"))
	if ec.State != EchoExpired || ec.Reason != ExpireNormal {
		t.Fatalf("echo state=%v reason=%q, want expired normal at cap", ec.State, ec.Reason)
	}
}

func TestSpawnEcho_Failures(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	cfg := testConfig()
	cfg.MaxActiveEchoes = 1
	e := newTestEngine(w, cfg, nil)

	playTurn(t, e, wait("P1"))
	tl := e.Recording()

	if _, err := e.SpawnEcho("T999", 0); !errors.Is(err, ErrUnknownTimeline) {
		t.Fatalf("unknown timeline: %v", err)
	}
	if _, err := e.SpawnEcho(tl, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad offset: %v", err)
	}

	// Spawn cell still occupied by the player: energy must be refunded.
	before := e.Energy()
	if _, err := e.SpawnEcho(tl, 0); !errors.Is(err, ErrSpawnBlocked) {
		t.Fatalf("blocked spawn: %v", err)
	}
	if e.Energy() != before {
		t.Fatalf("blocked spawn leaked energy: %d -> %d", before, e.Energy())
	}

	w.entities["P1"].pos = Cell{5, 5}
	if _, err := e.SpawnEcho(tl, 0); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := e.SpawnEcho(tl, 0); !errors.Is(err, ErrEchoLimit) {
		t.Fatalf("over cap: %v", err)
	}
}

func TestDismissEcho(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	e := newTestEngine(w, testConfig(), nil)

	playTurn(t, e, wait("P1"))
	tl := e.Recording()
	if err := e.ArchiveRecording(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	e.StartRecording()
	w.entities["P1"].pos = Cell{5, 5}

	echoID, err := e.SpawnEcho(tl, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if got := len(e.ActiveEchoes()); got != 1 {
		t.Fatalf("active = %d", got)
	}
	if err := e.DismissEcho(echoID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if got := len(e.ActiveEchoes()); got != 0 {
		t.Fatalf("active after dismiss = %d", got)
	}
	if err := e.DismissEcho(echoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double dismiss: %v", err)
	}
}

func TestRecordPlayerAction_InsufficientEnergy(t *testing.T) {
	w := newStubWorld()
	w.entities["P1"] = &stubEntity{pos: Cell{0, 0}, alive: true}
	cfg := testConfig()
	cfg.EnergyInitial = 0
	cfg.RecordCost = 3
	e := newTestEngine(w, cfg, nil)

	e.BeginTurn()
	if _, err := e.RecordPlayerAction(wait("P1")); !errors.Is(err, ErrInsufficientEnergy) {
		t.Fatalf("record with empty pool: %v", err)
	}
	if n, _ := e.Store().Len(e.Recording()); n != 0 {
		t.Fatalf("rejected record still appended: len=%d", n)
	}
}
