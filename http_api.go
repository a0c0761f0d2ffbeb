package auth

import (
	"github.com/gofiber/fiber/v2"
)

func (a *AuthController) UserInfo(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	info, err := a.Flows.UserInfo(c.UserContext(), identity.Account.ID)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    info,
	})
}

type UpdateUserPayload struct {
	Name  string `form:"name" json:"name"`
	DOB   string `form:"dob" json:"dob"`
	CCCD  string `form:"cccd" json:"cccd"`
	Phone string `form:"phone" json:"phone"`
	Email string `form:"email" json:"email"`
}

func (a *AuthController) UpdateUser(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	payload := new(UpdateUserPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, ErrProfileNotFound)
	}

	_, err := a.Flows.UpdateProfile(c.UserContext(), UpdateProfileMessage{
		AccountID: identity.Account.ID,
		Name:      payload.Name,
		DOB:       payload.DOB,
		CCCD:      payload.CCCD,
		Phone:     payload.Phone,
		Email:     payload.Email,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Updated successfully",
	})
}

func (a *AuthController) Questions(c *fiber.Ctx) error {
	questions, err := a.Flows.Questions(c.UserContext(), c.Query("subject"))
	if err != nil {
		return a.ErrorHandler(c, err)
	}
	return c.JSON(questions)
}

func (a *AuthController) Result(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	answers := map[string]string{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&answers); err != nil {
			return a.ErrorHandler(c, ErrMissingFields)
		}
	}

	resp, err := a.Flows.SubmitResult(c.UserContext(), SubmitResultMessage{
		AccountID: identity.Account.ID,
		Subject:   c.Query("subject"),
		Answers:   answers,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(resp)
}

func (a *AuthController) PrepareToExam(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return a.ErrorHandler(c, ErrNoToken)
	}

	if err := a.Flows.PrepareExam(c.UserContext(), identity.Account.ID); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ready for the exam.",
	})
}
