package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/linesmerrill/civil-defense-api/models"
)

var (
	categories = []models.OccurrenceCategory{
		models.CategoryEnvironmentalInspection,
		models.CategoryVegetationRisk,
		models.CategoryVegetationFire,
		models.CategoryOther,
	}
	origins = []models.OriginType{
		models.OriginProcess,
		models.OriginEmailWhatsApp,
		models.OriginPhone,
		models.OriginOfficialLetter,
		models.OriginFireDepartment,
	}
	teamActions = []models.TeamActionType{
		models.TeamActionIsolation,
		models.TeamActionNotification,
		models.TeamActionTechnicalReport,
		models.TeamActionEvacuation,
		models.TeamActionInterdiction,
		models.TeamActionAssessment,
		models.TeamActionReopening,
		models.TeamActionLogistics,
	}
	organisms = []models.OrganismType{
		models.OrganismFireDepartment,
		models.OrganismSAAE,
		models.OrganismEnvironmentalPolice,
		models.OrganismCPFL,
		models.OrganismCetesb,
		models.OrganismMunicipalGuard,
		models.OrganismTraffic,
		models.OrganismSocialAction,
	}
	statuses = []models.OccurrenceStatus{models.StatusOpen, models.StatusInProgress, models.StatusClosed}

	neighborhoods = []string{
		"Centro", "Jardim Europa", "Vila Industrial", "Parque das Flores",
		"Jardim América", "Vila São João", "Alto da Boa Vista", "Jardim Tropical",
		"Vila Maria", "Parque dos Lagos", "Cidade Nova", "Jardim Primavera",
	}
	streets = []string{
		"Rua das Palmeiras", "Avenida Brasil", "Rua Santa Cruz", "Avenida Paulista",
		"Rua São José", "Rua das Flores", "Avenida Central", "Rua do Comércio",
		"Rua Tiradentes", "Avenida dos Estados", "Rua XV de Novembro", "Rua Barão de Mauá",
	}
	institutions = []string{
		"Prefeitura Municipal", "Secretaria do Meio Ambiente", "Defesa Civil",
		"Corpo de Bombeiros", "Polícia Ambiental", "CETESB", "SAAE", "Guarda Municipal",
	}
	requesters = []string{
		"João Silva", "Maria Santos", "Pedro Oliveira", "Ana Costa",
		"Carlos Souza", "Juliana Almeida", "Roberto Pereira", "Fernanda Lima",
		"Marcos Rodrigues", "Patricia Ferreira", "Ricardo Martins", "Camila Rocha",
	}
	vehicles = []string{
		"Viatura AB-01", "Caminhão Pipa CP-02", "Viatura VT-03",
		"Caminhonete CT-04", "Van Logística VL-05", "Pick-up PK-07",
	}
	materials = []string{
		"Cones de sinalização, fita zebrada",
		"Extintores, mangueiras",
		"EPI completo, ferramentas",
		"Material de primeiros socorros",
		"Equipamento de combate a incêndio",
		"Ferramentas de corte e poda",
	}
	descriptions = map[models.OccurrenceCategory][]string{
		models.CategoryEnvironmentalInspection: {
			"Solicitação de vistoria em área com suspeita de contaminação do solo",
			"Vistoria técnica para avaliação de impacto ambiental em terreno baldio",
			"Vistoria solicitada por denúncia de descarte irregular de resíduos",
			"Inspeção em área industrial com suspeita de contaminação",
		},
		models.CategoryVegetationRisk: {
			"Árvore com risco de queda em via pública, necessário poda emergencial",
			"Vegetação em risco sobre fiação elétrica, necessário intervenção urgente",
			"Galhos secos com risco iminente de queda sobre residências",
			"Árvore com cupim apresentando risco estrutural",
		},
		models.CategoryVegetationFire: {
			"Incêndio em vegetação de médio porte em área de mata",
			"Foco de incêndio em terreno baldio com vegetação seca",
			"Queimada urbana próxima a residências, necessário combate imediato",
			"Fogo em vegetação próximo a rede elétrica",
		},
		models.CategoryOther: {
			"Vazamento de produto químico em via pública",
			"Mortandade de peixes em corpo d'água",
			"Ocorrência de deslizamento de terra em área urbana",
			"Derramamento de óleo em via pública",
		},
	}
)

// generator builds random but plausible occurrences inside a time window
type generator struct {
	rnd   *rand.Rand
	from  time.Time
	until time.Time
}

func newGenerator(seed uint64, from, until time.Time) *generator {
	return &generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), from: from, until: until}
}

func pick[T any](g *generator, items []T) T {
	return items[g.rnd.IntN(len(items))]
}

func (g *generator) occurrence() models.CreateOccurrenceRequest {
	category := pick(g, categories)
	span := g.until.Sub(g.from)
	start := g.from.Add(time.Duration(g.rnd.Int64N(int64(span) + 1)))
	status := pick(g, statuses)

	req := models.CreateOccurrenceRequest{
		StartDateTime: start.UTC().Format(time.RFC3339),
		Origins:       []models.OriginType{pick(g, origins)},
		Category:      category,
		Description:   pick(g, descriptions[category]),
		RequesterName: pick(g, requesters),
		Institution:   pick(g, institutions),
		Phone:         g.phone(),
		Location:      g.location(),
		Actions: []models.Action{
			{TeamAction: pick(g, teamActions), ActivatedOrganism: pick(g, organisms)},
		},
		Resources: []models.Resource{
			{Vehicle: pick(g, vehicles), Materials: pick(g, materials)},
		},
		Status: status,
	}
	if status == models.StatusClosed {
		end := start.Add(time.Duration(1+g.rnd.IntN(48)) * time.Hour)
		req.EndDateTime = end.UTC().Format(time.RFC3339)
	}
	return req
}

func (g *generator) phone() string {
	return fmt.Sprintf("(%d) 9%04d-%04d", 11+g.rnd.IntN(9), 1000+g.rnd.IntN(9000), 1000+g.rnd.IntN(9000))
}

func (g *generator) location() *models.Location {
	lat := -22.0 + (g.rnd.Float64()*0.1 - 0.05)
	lng := -47.89 + (g.rnd.Float64()*0.1 - 0.05)
	alt := float64(850 + g.rnd.IntN(100))
	return &models.Location{
		Latitude:     &lat,
		Longitude:    &lng,
		Altitude:     &alt,
		Address:      pick(g, streets),
		Number:       fmt.Sprint(1 + g.rnd.IntN(2000)),
		Neighborhood: pick(g, neighborhoods),
	}
}
