package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/planstudio-ai/planstudio/citest/testutil"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

var _ = Describe("Project endpoints", func() {
	httpClient := &http.Client{Timeout: 5 * time.Second}

	It("round-trips a project document", func() {
		doc := types.ProjectDocument{
			Messages: []types.Message{
				{Key: "m1", Role: types.RoleUser, Content: "hi"},
			},
		}
		body, err := json.Marshal(doc)
		Expect(err).NotTo(HaveOccurred())

		resp, err := httpClient.Post(testServer.BaseURL+"/project/roundtrip", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		resp, err = httpClient.Get(testServer.BaseURL + "/project/roundtrip")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var got types.ProjectDocument
		Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
		Expect(got.Messages).To(HaveLen(1))
		Expect(got.Messages[0].Content).To(Equal("hi"))
	})

	It("returns an empty document for an unknown project", func() {
		resp, err := httpClient.Get(testServer.BaseURL + "/project/never-saved")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var got types.ProjectDocument
		Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
		Expect(got.Messages).To(BeEmpty())
	})

	It("rejects documents with unknown roles", func() {
		body := []byte(`{"messages":[{"key":"m1","role":"narrator","content":"x"}]}`)
		resp, err := httpClient.Post(testServer.BaseURL+"/project/bad-role", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Planning endpoint", func() {
	It("streams scripted steps as SSE", func() {
		testServer.Planner.Add("scripted", testutil.Script{
			Chunks: []string{"Hel", "lo"},
			Delay:  10 * time.Millisecond,
		})

		sse := testServer.SSEClient()
		defer sse.Close()

		err := sse.Plan(ctx, types.PlanRequest{
			PlannerID: "scripted",
			History:   []types.Message{{Key: "m1", Role: types.RoleUser, Content: "hi"}},
		})
		Expect(err).NotTo(HaveOccurred())

		steps := sse.CollectSteps(5 * time.Second)
		Expect(steps).To(HaveLen(2))
		Expect(steps[0].Message.Content).To(Equal("Hel"))
		Expect(steps[1].Message.Content).To(Equal("lo"))
	})

	It("delivers planner failures as error steps", func() {
		testServer.Planner.Add("failing", testutil.Script{
			Chunks: []string{"partial"},
			Fail:   "model overloaded",
		})

		sse := testServer.SSEClient()
		defer sse.Close()

		err := sse.Plan(ctx, types.PlanRequest{PlannerID: "failing"})
		Expect(err).NotTo(HaveOccurred())

		steps := sse.CollectSteps(5 * time.Second)
		Expect(len(steps)).To(BeNumerically(">=", 2))
		last := steps[len(steps)-1]
		Expect(last.Type).To(Equal(types.StepTypeError))
		Expect(last.Details).To(Equal("model overloaded"))
	})

	It("records the request history for the planner", func() {
		testServer.Planner.Add("recording", testutil.Script{Chunks: []string{"ok"}})

		sse := testServer.SSEClient()
		defer sse.Close()

		err := sse.Plan(ctx, types.PlanRequest{
			PlannerID: "recording",
			History:   []types.Message{{Key: "m1", Role: types.RoleUser, Content: "plan this"}},
		})
		Expect(err).NotTo(HaveOccurred())
		sse.CollectSteps(5 * time.Second)

		var req *types.PlanRequest
		for _, r := range testServer.Planner.Requests() {
			if r.PlannerID == "recording" {
				req = &r
				break
			}
		}
		Expect(req).NotTo(BeNil())
		Expect(req.History).To(HaveLen(1))
		Expect(req.History[0].Content).To(Equal("plan this"))
	})
})
