package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/workflow"
)

type createWorkflowRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description"`
	AgentID     string          `json:"agent_id" validate:"required"`
	Nodes       []workflow.Node `json:"nodes"`
	Edges       []workflow.Edge `json:"edges"`
	Markdown    string          `json:"workflow_markdown"`
}

func (h *handler) listWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.ListWorkflows(c.Context(), c.Query("agent_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(workflows)
}

func (h *handler) createWorkflow(c fiber.Ctx) error {
	var req createWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.store.CreateWorkflow(c.Context(), &workflow.Workflow{
		Name:        req.Name,
		Description: req.Description,
		AgentID:     req.AgentID,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Markdown:    req.Markdown,
	})
	if err != nil {
		return h.fail(c, err)
	}
	h.log.Info("workflow created", "workflow_id", created.ID, "agent_id", created.AgentID)
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handler) getWorkflow(c fiber.Ctx) error {
	w, err := h.store.LoadWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(w)
}

func (h *handler) updateWorkflow(c fiber.Ctx) error {
	var u workflow.Update
	if err := c.Bind().JSON(&u); err != nil {
		return badRequest(c, "invalid body")
	}
	if u.Empty() {
		return badRequest(c, "body sets none of name, description, agent_id, nodes, edges, workflow_markdown")
	}
	if u.Name != nil {
		if err := h.validate.Var(*u.Name, "required,max=100"); err != nil {
			return badRequest(c, "name: "+err.Error())
		}
	}
	id := c.Params("id")
	if err := h.store.UpdateWorkflow(c.Context(), id, u); err != nil {
		return h.fail(c, err)
	}
	w, err := h.store.LoadWorkflow(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(w)
}

func (h *handler) deleteWorkflow(c fiber.Ctx) error {
	if err := h.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
