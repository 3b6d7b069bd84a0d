package handlers

import (
	"github.com/go-playground/validator/v10"

	"github.com/linesmerrill/civil-defense-api/models"
	"github.com/linesmerrill/civil-defense-api/occurrences"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
	v.RegisterValidation("datetime_iso", func(fl validator.FieldLevel) bool {
		_, err := occurrences.ParseDateTime(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("category", oneOf(
		models.CategoryEnvironmentalInspection,
		models.CategoryVegetationRisk,
		models.CategoryVegetationFire,
		models.CategoryOther,
	))
	v.RegisterValidation("status", oneOf(
		models.StatusOpen,
		models.StatusInProgress,
		models.StatusClosed,
	))
	v.RegisterValidation("origin", oneOf(
		models.OriginProcess,
		models.OriginEmailWhatsApp,
		models.OriginPhone,
		models.OriginOfficialLetter,
		models.OriginFireDepartment,
	))
	v.RegisterValidation("teamaction", oneOf(
		models.TeamActionIsolation,
		models.TeamActionNotification,
		models.TeamActionTechnicalReport,
		models.TeamActionEvacuation,
		models.TeamActionInterdiction,
		models.TeamActionAssessment,
		models.TeamActionReopening,
		models.TeamActionLogistics,
	))
	v.RegisterValidation("organism", oneOf(
		models.OrganismFireDepartment,
		models.OrganismSAAE,
		models.OrganismEnvironmentalPolice,
		models.OrganismCPFL,
		models.OrganismCetesb,
		models.OrganismMunicipalGuard,
		models.OrganismTraffic,
		models.OrganismSocialAction,
	))
	return v
}

func oneOf[T ~string](allowed ...T) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[string(a)] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}
