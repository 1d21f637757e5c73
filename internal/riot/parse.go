package riot

import (
	"encoding/json"
	"fmt"

	"github.com/riftwatch/rift-harvester/internal/model"
)

// decode unmarshals a payload, tagging failures with the endpoint name.
func decode(data []byte, v any, endpoint string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// parseMatch normalizes a raw match payload. Missing identity fields fail
// with a ParseError so the candidate is dropped without touching the breaker.
func parseMatch(data []byte) (*model.Match, error) {
	var dto matchDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, &ParseError{Endpoint: "match", Err: err}
	}
	if dto.Metadata.MatchID == "" {
		return nil, &ParseError{Endpoint: "match", Err: fmt.Errorf("missing metadata.matchId")}
	}
	if dto.Info.GameVersion == "" {
		return nil, &ParseError{Endpoint: "match", Err: fmt.Errorf("missing info.gameVersion")}
	}
	if len(dto.Info.Participants) == 0 {
		return nil, &ParseError{Endpoint: "match", Err: fmt.Errorf("missing info.participants")}
	}

	m := &model.Match{
		MatchID:      dto.Metadata.MatchID,
		GameID:       dto.Info.GameID,
		PlatformID:   dto.Info.PlatformID,
		QueueID:      dto.Info.QueueID,
		GameCreation: dto.Info.GameCreation,
		GameStart:    dto.Info.GameStartTimestamp,
		GameEnd:      dto.Info.GameEndTimestamp,
		GameDuration: dto.Info.GameDuration,
		GameVersion:  dto.Info.GameVersion,
		GameMode:     dto.Info.GameMode,
		GameType:     dto.Info.GameType,
		Team100:      model.Team{TeamID: 100},
		Team200:      model.Team{TeamID: 200},
	}
	if m.GameStart == 0 {
		m.GameStart = m.GameCreation
	}
	if m.GameEnd == 0 {
		m.GameEnd = m.GameCreation + m.GameDuration*1000
	}

	for _, t := range dto.Info.Teams {
		team := parseTeam(t)
		switch t.TeamID {
		case 100:
			m.Team100 = team
		case 200:
			m.Team200 = team
		}
	}

	m.Participants = make([]model.Participant, 0, len(dto.Info.Participants))
	for _, p := range dto.Info.Participants {
		m.Participants = append(m.Participants, parseParticipant(p))
	}
	accumulateTeamTotals(&m.Team100, m.Participants)
	accumulateTeamTotals(&m.Team200, m.Participants)

	return m, nil
}

func parseTeam(t teamDTO) model.Team {
	return model.Team{
		TeamID:         t.TeamID,
		Win:            t.Win,
		DragonKills:    t.Objectives.Dragon.Kills,
		BaronKills:     t.Objectives.Baron.Kills,
		TowerKills:     t.Objectives.Tower.Kills,
		InhibitorKills: t.Objectives.Inhibitor.Kills,
		HeraldKills:    t.Objectives.RiftHerald.Kills,
		FirstDragon:    t.Objectives.Dragon.First,
		FirstBaron:     t.Objectives.Baron.First,
		FirstTower:     t.Objectives.Tower.First,
		FirstBlood:     t.Objectives.Champion.First,
	}
}

func parseParticipant(p participantDTO) model.Participant {
	role := p.TeamPosition
	if role == "" {
		role = p.Lane
	}
	return model.Participant{
		PUUID:               p.PUUID,
		SummonerID:          p.SummonerID,
		SummonerName:        p.SummonerName,
		TeamID:              p.TeamID,
		ChampionID:          p.ChampionID,
		ChampionName:        p.ChampionName,
		Role:                role,
		Lane:                p.Lane,
		Kills:               p.Kills,
		Deaths:              p.Deaths,
		Assists:             p.Assists,
		GoldEarned:          p.GoldEarned,
		TotalDamageToChamps: p.TotalDamageDealtToChampions,
		TotalDamageTaken:    p.TotalDamageTaken,
		VisionScore:         p.VisionScore,
		CreepScore:          p.TotalMinionsKilled + p.NeutralMinionsKilled,
		Items:               [7]int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6},
		Spell1:              p.Summoner1ID,
		Spell2:              p.Summoner2ID,
		Win:                 p.Win,
	}
}

func accumulateTeamTotals(team *model.Team, participants []model.Participant) {
	for _, p := range participants {
		if p.TeamID != team.TeamID {
			continue
		}
		team.TotalKills += p.Kills
		team.TotalDeaths += p.Deaths
		team.TotalGold += p.GoldEarned
	}
}

// parseSummoner normalizes a summoner payload.
func parseSummoner(data []byte) (*model.Summoner, error) {
	var dto summonerDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, &ParseError{Endpoint: "summoner", Err: err}
	}
	if dto.PUUID == "" {
		return nil, &ParseError{Endpoint: "summoner", Err: fmt.Errorf("missing puuid")}
	}
	return &model.Summoner{
		PUUID:         dto.PUUID,
		SummonerID:    dto.ID,
		AccountID:     dto.AccountID,
		Name:          dto.Name,
		ProfileIconID: dto.ProfileIconID,
		Level:         dto.SummonerLevel,
	}, nil
}

func entriesToModel(entries []leagueEntryDTO) []model.LeagueEntry {
	out := make([]model.LeagueEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.LeagueEntry{
			SummonerID:   e.SummonerID,
			SummonerName: e.SummonerName,
			PUUID:        e.PUUID,
			Tier:         e.Tier,
			Rank:         e.Rank,
			LeaguePoints: e.LeaguePoints,
		})
	}
	return out
}
