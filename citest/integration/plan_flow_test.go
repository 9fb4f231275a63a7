package integration_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/planstudio-ai/planstudio/citest/testutil"
	"github.com/planstudio-ai/planstudio/internal/planner"
	"github.com/planstudio-ai/planstudio/internal/project"
	"github.com/planstudio-ai/planstudio/internal/settings"
	"github.com/planstudio-ai/planstudio/internal/storage"
	"github.com/planstudio-ai/planstudio/internal/store"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// newStore wires a store against the test server the way the CLI does.
func newStore() *store.Store {
	repo, err := settings.NewFile(storage.New(GinkgoT().TempDir()))
	Expect(err).NotTo(HaveOccurred())

	return store.New(
		project.NewClient(testServer.BaseURL),
		planner.NewClient(testServer.BaseURL),
		repo,
	)
}

var _ = Describe("Plan flow", func() {
	var st *store.Store

	BeforeEach(func() {
		st = newStore()
	})

	AfterEach(func() {
		st.Close()
	})

	It("loads, plans, merges the stream, and saves", func() {
		testServer.Planner.Add("merging", testutil.Script{
			Chunks: []string{"Hel", "lo"},
			Delay:  10 * time.Millisecond,
		})

		Expect(st.Load(ctx, "flow-1")).To(Succeed())
		Expect(st.DocumentState()).To(Equal(store.StateLoaded))

		history := []types.Message{{Role: types.RoleUser, Content: "hi"}}
		st.Plan(ctx, history, "merging")

		Eventually(st.ExecutionRunning, 5*time.Second, 20*time.Millisecond).Should(BeFalse())

		log := st.Messages()
		Expect(log).To(HaveLen(2))
		Expect(log[0].Content).To(Equal("hi"))
		Expect(log[1].Role).To(Equal(types.RoleAssistant))
		Expect(log[1].Content).To(Equal("Hello"), "consecutive chunks coalesce into one entry")

		Expect(st.Dirty()).To(BeTrue())
		Expect(st.Save(ctx)).To(Succeed())
		Expect(st.Dirty()).To(BeFalse())

		// A fresh store sees the saved log.
		fresh := newStore()
		defer fresh.Close()
		Expect(fresh.Load(ctx, "flow-1")).To(Succeed())
		Expect(fresh.Messages()).To(HaveLen(2))
		Expect(fresh.Messages()[1].Content).To(Equal("Hello"))
	})

	It("drops output of a superseded session", func() {
		testServer.Planner.Add("slow", testutil.Script{
			Chunks: []string{"old-1", "old-2", "old-3"},
			Delay:  200 * time.Millisecond,
		})
		testServer.Planner.Add("quick", testutil.Script{
			Chunks: []string{"fresh"},
		})

		st.Plan(ctx, []types.Message{{Role: types.RoleUser, Content: "first"}}, "slow")
		st.Plan(ctx, []types.Message{{Role: types.RoleUser, Content: "second"}}, "quick")

		Eventually(st.ExecutionRunning, 5*time.Second, 20*time.Millisecond).Should(BeFalse())
		// Give the slow session time to emit into the void.
		time.Sleep(500 * time.Millisecond)

		log := st.Messages()
		Expect(log).To(HaveLen(2))
		Expect(log[0].Content).To(Equal("second"))
		Expect(log[1].Content).To(Equal("fresh"))
	})

	It("normalizes backend failures into planning error events", func() {
		testServer.Planner.Add("broken", testutil.Script{Fail: "planner exploded"})

		var mu sync.Mutex
		var events []types.PlanningEvent
		st.OnPlanning(func(e types.PlanningEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		})

		st.Plan(ctx, []types.Message{{Role: types.RoleUser, Content: "hi"}}, "broken")
		Eventually(st.ExecutionRunning, 5*time.Second, 20*time.Millisecond).Should(BeFalse())

		Eventually(func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, e := range events {
				if e.Type == types.PlanningError && e.Message == "planner exploded" {
					return true
				}
			}
			return false
		}, 5*time.Second, 20*time.Millisecond).Should(BeTrue())
	})

	It("streams steps while auto-following the newest message", func() {
		testServer.Planner.Add("following", testutil.Script{
			Chunks: []string{"a"},
		})

		st.Plan(ctx, nil, "following")
		Eventually(st.ExecutionRunning, 5*time.Second, 20*time.Millisecond).Should(BeFalse())

		key, automated := st.Selection()
		Expect(automated).To(BeTrue())
		Expect(key).To(Equal(st.Messages()[0].Key))
	})
})
