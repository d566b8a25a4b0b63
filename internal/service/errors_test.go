package service_test

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store/model"
)

var _ = Describe("status code", func() {
	job := &model.Job{ID: uuid.New(), Status: model.JobStatusCompleted}

	DescribeTable("maps errors to http classes",
		func(err error, code int) {
			Expect(service.StatusCode(err)).To(Equal(code))
		},
		Entry("no error", nil, http.StatusOK),
		Entry("validation", service.NewErrValidation("bad platform %q", "X"), http.StatusBadRequest),
		Entry("unknown location", service.NewErrUnknownLocation(uuid.New()), http.StatusBadRequest),
		Entry("job not found", service.NewErrJobNotFound(uuid.New()), http.StatusNotFound),
		Entry("wrapped not found", fmt.Errorf("retry: %w", service.NewErrLocationNotFound(uuid.New())), http.StatusNotFound),
		Entry("invalid state", service.NewErrInvalidState(&model.ErrInvalidTransition{JobID: job.ID, From: job.Status, Action: "retry"}), http.StatusConflict),
		Entry("job creation", service.NewErrJobCreation(job, service.NewErrPublish(errors.New("timeout"))), http.StatusInternalServerError),
		Entry("anything else", errors.New("db down"), http.StatusInternalServerError),
	)

	It("keeps the publish cause reachable", func() {
		cause := errors.New("timeout")
		err := service.NewErrJobCreation(job, service.NewErrPublish(cause))
		Expect(errors.Is(err, cause)).To(BeTrue())

		var publish *service.ErrPublish
		Expect(errors.As(err, &publish)).To(BeTrue())
	})
})
