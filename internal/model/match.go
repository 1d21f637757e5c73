package model

import (
	"strings"
	"time"
)

// Match is a fully fetched, normalized ranked match. It is immutable once
// built by the gateway's parsing step.
type Match struct {
	MatchID    string
	GameID     int64
	PlatformID string
	QueueID    int

	GameCreation  int64 // unix milliseconds
	GameStart     int64 // unix milliseconds
	GameEnd       int64 // unix milliseconds
	GameDuration  int64 // seconds
	GameVersion   string
	GameMode      string
	GameType      string

	// Team100 is blue side, Team200 red side.
	Team100 Team
	Team200 Team

	Participants []Participant
}

// PatchVersion extracts the "major.minor" patch from the full game version,
// e.g. "16.3" from "16.3.123.456".
func (m *Match) PatchVersion() string {
	parts := strings.SplitN(m.GameVersion, ".", 3)
	if len(parts) >= 2 {
		return parts[0] + "." + parts[1]
	}
	return m.GameVersion
}

// GameDate returns the match creation time.
func (m *Match) GameDate() time.Time {
	return time.UnixMilli(m.GameCreation)
}

// WinningTeam returns the team that won the match.
func (m *Match) WinningTeam() Team {
	if m.Team100.Win {
		return m.Team100
	}
	return m.Team200
}

// Team aggregates one side (100 blue, 200 red) of a match.
type Team struct {
	TeamID int
	Win    bool

	DragonKills    int
	BaronKills     int
	TowerKills     int
	InhibitorKills int
	HeraldKills    int
	FirstDragon    bool
	FirstBaron     bool
	FirstTower     bool
	FirstBlood     bool

	// Totals computed from participant stats during normalization.
	TotalKills  int
	TotalDeaths int
	TotalGold   int
}

// Participant is one player's line in a match.
type Participant struct {
	PUUID        string
	SummonerID   string
	SummonerName string
	TeamID       int

	ChampionID   int
	ChampionName string
	Role         string
	Lane         string

	Kills   int
	Deaths  int
	Assists int

	GoldEarned          int
	TotalDamageToChamps int
	TotalDamageTaken    int
	VisionScore         int
	CreepScore          int

	Items  [7]int
	Spell1 int
	Spell2 int

	Win bool
}

// KDA returns the kill/death/assist ratio, treating zero deaths as one.
func (p Participant) KDA() float64 {
	deaths := p.Deaths
	if deaths == 0 {
		deaths = 1
	}
	return float64(p.Kills+p.Assists) / float64(deaths)
}

// MatchCandidate is a discovered match identifier plus the platform it was
// found on. Candidates are produced by the discovery engine and consumed
// exactly once by the orchestrator.
type MatchCandidate struct {
	MatchID  string
	Platform string
}
