package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flows table
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT '',
				tags JSONB NOT NULL DEFAULT '[]',
				active_version_id UUID,
				is_archived BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_category ON flows(category);
			CREATE INDEX idx_flows_is_archived ON flows(is_archived);
			CREATE INDEX idx_flows_created_at ON flows(created_at);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			-- Create flow_versions table
			CREATE TABLE flow_versions (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id),
				version_number INT NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('draft', 'published')),
				change_notes TEXT NOT NULL DEFAULT '',
				published_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (flow_id, version_number)
			);

			CREATE INDEX idx_flow_versions_flow_id ON flow_versions(flow_id);
			CREATE INDEX idx_flow_versions_status ON flow_versions(status);

			-- Create nodes table
			CREATE TABLE nodes (
				id UUID PRIMARY KEY,
				flow_version_id UUID NOT NULL REFERENCES flow_versions(id),
				node_type VARCHAR(20) NOT NULL CHECK (node_type IN ('question', 'result')),
				title VARCHAR(500) NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				metadata JSONB,
				is_start BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_nodes_flow_version_id ON nodes(flow_version_id);
			CREATE INDEX idx_nodes_is_start ON nodes(flow_version_id) WHERE is_start;

			-- Create edges table
			CREATE TABLE edges (
				id UUID PRIMARY KEY,
				flow_version_id UUID NOT NULL REFERENCES flow_versions(id),
				source_node_id UUID NOT NULL REFERENCES nodes(id),
				target_node_id UUID NOT NULL REFERENCES nodes(id),
				condition_label VARCHAR(255) NOT NULL DEFAULT '',
				sort_order INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_edges_flow_version_id ON edges(flow_version_id);
			CREATE INDEX idx_edges_source_node_id ON edges(source_node_id);
			CREATE INDEX idx_edges_target_node_id ON edges(target_node_id);
			CREATE UNIQUE INDEX idx_edges_unique ON edges(flow_version_id, source_node_id, target_node_id, condition_label);

			-- Create sessions table
			CREATE TABLE sessions (
				id UUID PRIMARY KEY,
				flow_version_id UUID NOT NULL REFERENCES flow_versions(id),
				ticket_id VARCHAR(255) NOT NULL DEFAULT '',
				agent_id VARCHAR(255) NOT NULL DEFAULT '',
				agent_name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('in_progress', 'completed')),
				current_node_id UUID NOT NULL,
				path_taken JSONB NOT NULL DEFAULT '[]',
				final_node_id UUID,
				resolution_type VARCHAR(20) CHECK (resolution_type IN ('resolved', 'escalated')),
				feedback_rating INT CHECK (feedback_rating BETWEEN 1 AND 5),
				feedback_note TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_seconds INT
			);

			CREATE INDEX idx_sessions_flow_version_id ON sessions(flow_version_id);
			CREATE INDEX idx_sessions_status ON sessions(status);
			CREATE INDEX idx_sessions_ticket_id ON sessions(ticket_id);
			CREATE INDEX idx_sessions_started_at ON sessions(started_at);

			-- Create session_steps table
			CREATE TABLE session_steps (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL REFERENCES sessions(id),
				node_id UUID NOT NULL,
				edge_id UUID NOT NULL,
				answer_label VARCHAR(255) NOT NULL DEFAULT '',
				step_number INT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (session_id, step_number)
			);

			CREATE INDEX idx_session_steps_session_id ON session_steps(session_id);

			-- Create audit_logs table
			CREATE TABLE audit_logs (
				id UUID PRIMARY KEY,
				action VARCHAR(100) NOT NULL,
				resource_type VARCHAR(50) NOT NULL DEFAULT '',
				resource_id VARCHAR(255) NOT NULL DEFAULT '',
				actor_id VARCHAR(255) NOT NULL DEFAULT '',
				payload JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
			CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
		`,
	}
}
