package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	cmdSchema := compile("cmd.schema.json")
	stateSchema := compile("state.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"tester",
	  "level_id":"anomaly_halls",
	  "seed":1337
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "run_id":"5cf27c5d-8c0c-4f60-9e5f-0a9d4f3f9a11",
	  "resume_token":"0d5e0f0a-3e52-4f86-b1d9-0d71a5d3d0ab",
	  "player_id":"P1",
	  "level_id":"anomaly_halls",
	  "levels_digest":"deadbeef",
	  "seed":1337,
	  "turn":0,
	  "energy":20,
	  "energy_max":30
	}`), &welcome)
	validate(welcomeSchema, welcome)

	cmds := []string{
		`{"type":"CMD","protocol_version":"1.0","cmd":"MOVE","dx":1,"dy":0}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"ATTACK","target_id":"M01"}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"USE","item":"fracture_charge","target":[3,4]}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"WAIT"}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"REWIND","timeline_id":"T001","offset":0}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"DISMISS","echo_id":"E001"}`,
	}
	for _, raw := range cmds {
		var cmd any
		_ = json.Unmarshal([]byte(raw), &cmd)
		validate(cmdSchema, cmd)
	}

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATE",
	  "protocol_version":"1.0",
	  "turn":12,
	  "digest":"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	  "energy":18,
	  "energy_max":30,
	  "tiles":["#####","#...#","#####"],
	  "player":{"id":"P1","kind":"player","x":1,"y":1,"hp":10,"max_hp":10},
	  "entities":[{"id":"M01","kind":"creature","x":3,"y":1,"hp":3,"max_hp":3,"hostile":true}],
	  "echoes":[{"id":"E001","timeline_id":"T001","cursor":3,"log_len":12,"state":"ACTIVE","entity_id":"G_E001"}],
	  "events":[{"seq":1,"turn":12,"echo_id":"E001","timeline_id":"T001","reason":"target already dead","resolution":"soft:wait","executed":"WAIT"}]
	}`), &state)
	validate(stateSchema, state)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "protocol_version":"1.0",
	  "code":"E_BLOCKED",
	  "message":"command not applicable"
	}`), &errMsg)
	validate(errorSchema, errMsg)
}

func TestSchemas_RejectBadCmd(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "cmd.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	bad := []string{
		`{"type":"CMD","protocol_version":"1.0","cmd":"FLY"}`,
		`{"type":"CMD","protocol_version":"1.0"}`,
		`{"type":"CMD","protocol_version":"1.0","cmd":"MOVE","dx":2}`,
	}
	for _, raw := range bad {
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
}
