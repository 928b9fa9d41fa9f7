package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/outdead/jobkit/delayedjob"
)

// TriggerRequest is the body of POST /jobs/:name/trigger. A missing
// delay uses the job's default aggregation delay.
type TriggerRequest struct {
	DelayMS *int64 `json:"delay_ms" validate:"omitempty,gte=0"`
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/jobs", s.listJobs)
	e.GET("/jobs/:name", s.getJob)
	e.POST("/jobs/:name/trigger", s.triggerJob)
	e.POST("/jobs/:name/terminate", s.terminateJob)
}

func (s *Server) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Snapshot())
}

func (s *Server) getJob(c echo.Context) error {
	job, err := s.lookup(c.Param("name"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jobStatus(job))
}

func (s *Server) triggerJob(c echo.Context) error {
	job, err := s.lookup(c.Param("name"))
	if err != nil {
		return err
	}

	req := new(TriggerRequest)
	if err := c.Bind(req); err != nil {
		return err
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	if req.DelayMS != nil {
		job.TriggerDelay(time.Duration(*req.DelayMS) * time.Millisecond)
	} else {
		job.Trigger()
	}

	return c.JSON(http.StatusOK, jobStatus(job))
}

func (s *Server) terminateJob(c echo.Context) error {
	job, err := s.lookup(c.Param("name"))
	if err != nil {
		return err
	}

	job.Terminate()

	return c.JSON(http.StatusOK, jobStatus(job))
}

func (s *Server) lookup(name string) (*delayedjob.Job, error) {
	job, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}

	return job, nil
}

func jobStatus(job *delayedjob.Job) delayedjob.JobStatus {
	state := job.State()

	return delayedjob.JobStatus{
		Name:       job.Name(),
		State:      state.String(),
		Terminated: state == delayedjob.StateTerminated,
	}
}
