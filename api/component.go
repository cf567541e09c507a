package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/workflow"
)

type componentRequest struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Description        string          `json:"description"`
	EnglishDescription string          `json:"english_description"`
	Kind               workflow.Kind   `json:"component_type" validate:"required,oneof=lpi agent common"`
	Category           string          `json:"category" validate:"max=50"`
	Content            json.RawMessage `json:"content"`
}

func (r componentRequest) component() *workflow.Component {
	return &workflow.Component{
		Name:               r.Name,
		Description:        r.Description,
		EnglishDescription: r.EnglishDescription,
		Kind:               r.Kind,
		Category:           r.Category,
		Content:            r.Content,
	}
}

func (h *handler) listComponents(c fiber.Ctx) error {
	f := workflow.ComponentFilter{Kind: workflow.Kind(c.Query("type")), Category: c.Query("category")}
	if f.Kind != "" && !f.Kind.Component() {
		return badRequest(c, "unsupported component type")
	}
	components, err := h.store.ListComponents(c.Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(components)
}

func (h *handler) componentTree(c fiber.Ctx) error {
	components, err := h.store.ListComponents(c.Context(), workflow.ComponentFilter{})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(workflow.BuildTree(components))
}

func (h *handler) searchComponents(c fiber.Ctx) error {
	entries, err := h.store.Search(c.Context(), c.Query("q"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entries)
}

func (h *handler) getComponent(c fiber.Ctx) error {
	comp, err := h.store.GetComponent(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(comp)
}

func (h *handler) exportComponent(c fiber.Ctx) error {
	comp, err := h.store.GetComponent(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var workflows []workflow.Workflow
	if comp.Kind == workflow.KindAgent {
		if workflows, err = h.store.ListWorkflows(c.Context(), comp.ID); err != nil {
			return h.fail(c, err)
		}
	}
	return c.JSON(comp.Export(workflows))
}

func (h *handler) createComponent(c fiber.Ctx) error {
	var req componentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	created, err := h.store.CreateComponent(c.Context(), req.component())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handler) updateComponent(c fiber.Ctx) error {
	var req componentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// The kind is fixed at creation; only the descriptive fields are checked.
	if err := h.validate.StructExcept(req, "Kind"); err != nil {
		return badRequest(c, err.Error())
	}
	comp := req.component()
	comp.ID = c.Params("id")
	if err := h.store.UpdateComponent(c.Context(), comp); err != nil {
		return h.fail(c, err)
	}
	updated, err := h.store.GetComponent(c.Context(), comp.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(updated)
}

func (h *handler) deleteComponent(c fiber.Ctx) error {
	if err := h.store.DeleteComponent(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
