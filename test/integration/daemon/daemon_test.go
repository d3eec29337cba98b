// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

//go:build integration

package daemon_test

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/recorder"
	"github.com/hearthd/hearthd/internal/scene"
)

// stateDoc is the wire shape of a state response.
type stateDoc struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Context     struct {
		ID string `json:"id"`
	} `json:"context"`
}

// historyDoc is the wire shape of one history row.
type historyDoc struct {
	EntityID   string          `json:"entity_id"`
	State      string          `json:"state"`
	Attributes json.RawMessage `json:"attributes"`
	RecordedAt time.Time       `json:"recorded_at"`
	ContextID  string          `json:"context_id"`
}

var _ = Describe("State API", func() {
	It("creates an entity and reads it back", func() {
		resp, body := env.post("/api/states/light.porch", `{"state":"on","attributes":{"brightness":40}}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(resp.Header.Get("Location")).To(Equal("/api/states/light.porch"))

		var created stateDoc
		Expect(json.Unmarshal(body, &created)).To(Succeed())
		Expect(created.EntityID).To(Equal("light.porch"))
		Expect(created.State).To(Equal("on"))
		Expect(created.Context.ID).NotTo(BeEmpty())

		resp, body = env.get("/api/states/light.porch")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var got stateDoc
		Expect(json.Unmarshal(body, &got)).To(Succeed())
		Expect(got.State).To(Equal("on"))
		Expect(got.Attributes).To(HaveKeyWithValue("brightness", float64(40)))
	})

	It("preserves last_changed when the state does not change", func() {
		resp, body := env.post("/api/states/binary_sensor.front_door", `{"state":"open"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var first stateDoc
		Expect(json.Unmarshal(body, &first)).To(Succeed())

		resp, body = env.post("/api/states/binary_sensor.front_door", `{"state":"open"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var second stateDoc
		Expect(json.Unmarshal(body, &second)).To(Succeed())
		Expect(second.LastChanged).To(Equal(first.LastChanged))

		resp, body = env.post("/api/states/binary_sensor.front_door", `{"state":"closed"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var third stateDoc
		Expect(json.Unmarshal(body, &third)).To(Succeed())
		Expect(third.State).To(Equal("closed"))
		Expect(third.LastChanged.After(first.LastChanged)).To(BeTrue())
	})

	It("rejects a body without a state", func() {
		resp, body := env.post("/api/states/light.porch", `{"attributes":{"brightness":40}}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(string(body)).To(ContainSubstring("No state specified."))
	})

	It("rejects an invalid entity ID", func() {
		resp, _ := env.post("/api/states/porch", `{"state":"on"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("removes an entity", func() {
		resp, _ := env.post("/api/states/light.closet", `{"state":"on"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, body := env.delete("/api/states/light.closet")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("Entity removed."))

		resp, _ = env.get("/api/states/light.closet")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("History", func() {
	It("records state changes to PostgreSQL", func() {
		resp, _ := env.post("/api/states/sensor.hall_temp", `{"state":"21.5"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		resp, _ = env.post("/api/states/sensor.hall_temp", `{"state":"22.0"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Eventually(func(g Gomega) {
			resp, body := env.get("/api/history/sensor.hall_temp")
			g.Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var rows []historyDoc
			g.Expect(json.Unmarshal(body, &rows)).To(Succeed())
			g.Expect(rows).To(HaveLen(2))
			g.Expect(rows[0].State).To(Equal("21.5"))
			g.Expect(rows[1].State).To(Equal("22.0"))
			g.Expect(rows[0].ContextID).NotTo(BeEmpty())
		}, 5*time.Second, 100*time.Millisecond).Should(Succeed())
	})

	It("filters with since and limit", func() {
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
		var batch []recorder.StoredState
		for i, state := range []string{"18.0", "18.5", "19.0"} {
			batch = append(batch, recorder.StoredState{
				EntityID:    "sensor.attic_temp",
				State:       state,
				Attributes:  []byte(`{}`),
				LastChanged: base,
				LastUpdated: base,
				ContextID:   "ctx",
				RecordedAt:  base.Add(time.Duration(i) * time.Minute),
			})
		}
		Expect(env.store.InsertStates(env.ctx, batch)).To(Succeed())

		since := base.Add(30 * time.Second).Format(time.RFC3339)
		resp, body := env.get("/api/history/sensor.attic_temp?since=" + since)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var rows []historyDoc
		Expect(json.Unmarshal(body, &rows)).To(Succeed())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].State).To(Equal("18.5"))

		resp, body = env.get("/api/history/sensor.attic_temp?limit=1")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		rows = nil
		Expect(json.Unmarshal(body, &rows)).To(Succeed())
		Expect(rows).To(HaveLen(1))
	})

	It("rejects a malformed since timestamp", func() {
		resp, body := env.get("/api/history/sensor.hall_temp?since=yesterday")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(string(body)).To(ContainSubstring("Invalid since timestamp."))
	})
})

var _ = Describe("Purge", func() {
	It("drops rows outside the retention window", func() {
		now := time.Now().UTC()
		Expect(env.store.InsertStates(env.ctx, []recorder.StoredState{
			{EntityID: "sensor.cellar_temp", State: "12.0", Attributes: []byte(`{}`),
				LastChanged: now, LastUpdated: now, ContextID: "ctx", RecordedAt: now.Add(-48 * time.Hour)},
			{EntityID: "sensor.cellar_temp", State: "12.5", Attributes: []byte(`{}`),
				LastChanged: now, LastUpdated: now, ContextID: "ctx", RecordedAt: now},
		})).To(Succeed())

		purged, err := env.rec.Purge(env.ctx, 24*time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(BeNumerically(">=", 1))

		resp, body := env.get("/api/history/sensor.cellar_temp")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var rows []historyDoc
		Expect(json.Unmarshal(body, &rows)).To(Succeed())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].State).To(Equal("12.5"))
	})
})

var _ = Describe("Events", func() {
	It("delivers fired events to bus subscribers", func() {
		ch := env.bus.Subscribe(core.EventType("movie_time"))
		DeferCleanup(func() {
			env.bus.Unsubscribe(core.EventType("movie_time"), ch)
		})

		resp, body := env.post("/api/events/movie_time", `{"scene":"movie_night"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("Event movie_time fired."))

		var ev core.Event
		Eventually(ch).Should(Receive(&ev))
		Expect(ev.Type).To(Equal(core.EventType("movie_time")))
		Expect(ev.Data).To(HaveKeyWithValue("scene", "movie_night"))
		Expect(ev.Context.ID).NotTo(Equal(ulid.ULID{}))
	})

	It("reports listener counts", func() {
		ch := env.bus.Subscribe(core.EventType("heating_check"))
		DeferCleanup(func() {
			env.bus.Unsubscribe(core.EventType("heating_check"), ch)
		})

		resp, body := env.get("/api/events")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var listeners []struct {
			Event         string `json:"event"`
			ListenerCount int    `json:"listener_count"`
		}
		Expect(json.Unmarshal(body, &listeners)).To(Succeed())
		Expect(listeners).To(ContainElement(HaveField("Event", "heating_check")))
	})
})

var _ = Describe("Scenes", func() {
	It("applies a manifest through the live machine", func() {
		manifest, err := scene.ParseManifest([]byte(`
name: evening
entities:
  light.reading_lamp:
    state: on
    brightness: 30
  switch.fountain: off
`))
		Expect(err).NotTo(HaveOccurred())

		applied, err := manifest.Apply(env.ctx, env.machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(Equal(2))

		resp, body := env.get("/api/states/light.reading_lamp")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var lamp stateDoc
		Expect(json.Unmarshal(body, &lamp)).To(Succeed())
		Expect(lamp.State).To(Equal("on"))
		Expect(lamp.Attributes).To(HaveKeyWithValue("brightness", float64(30)))

		resp, body = env.get("/api/states/switch.fountain")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var fountain stateDoc
		Expect(json.Unmarshal(body, &fountain)).To(Succeed())
		Expect(fountain.State).To(Equal("off"))
		Expect(fountain.Context.ID).To(Equal(lamp.Context.ID))

		Eventually(func(g Gomega) {
			resp, body := env.get("/api/history/light.reading_lamp")
			g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var rows []historyDoc
			g.Expect(json.Unmarshal(body, &rows)).To(Succeed())
			g.Expect(rows).NotTo(BeEmpty())
			g.Expect(rows[0].Attributes).To(MatchJSON(`{"brightness":30}`))
		}, 5*time.Second, 100*time.Millisecond).Should(Succeed())
	})
})
