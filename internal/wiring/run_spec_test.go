package wiring

import (
	"context"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"nodeflow/internal/store"
	"nodeflow/pkg/workflow"
)

var _ = ginkgo.Describe("Engine", func() {
	var (
		ctx context.Context
		e   *Engine
		st  *store.SqlStore
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.Open(filepath.Join(ginkgo.GinkgoT().TempDir(), "nodeflow.db"))
		gomega.Expect(err).To(gomega.Succeed())
		e, err = New(ctx, WithStore(st))
		gomega.Expect(err).To(gomega.Succeed())
		ginkgo.DeferCleanup(func() { gomega.Expect(e.Close(ctx)).To(gomega.Succeed()) })
	})

	ginkgo.It("loads, runs and records a workflow in SQLite", func() {
		g, err := e.LoadFile(filepath.Join("testdata", "greeting.yaml"))
		gomega.Expect(err).To(gomega.Succeed())

		res, err := e.Run(ctx, g, workflow.ExecContext{}, true)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(res.Success).To(gomega.BeTrue())

		rec, err := st.GetRun(res.RunID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(rec).NotTo(gomega.BeNil())
		out, err := rec.Outputs()
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(out).To(gomega.HaveKeyWithValue("upper", gomega.HaveKeyWithValue("result", "HELLO")))
	})

	ginkgo.It("records failed runs too", func() {
		g, err := e.LoadFile(filepath.Join("testdata", "greeting.yaml"))
		gomega.Expect(err).To(gomega.Succeed())
		g.Nodes[0].Data["value"] = 42

		res, err := e.Run(ctx, g, workflow.ExecContext{}, true)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(res.Success).To(gomega.BeFalse())

		runs, err := st.ListRuns(g.ID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(runs).To(gomega.HaveLen(1))
		gomega.Expect(runs[0].Error).To(gomega.ContainSubstring("uppercase"))
	})
})
