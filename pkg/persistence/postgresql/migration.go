package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				metadata JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE workflow_nodes (
				id VARCHAR(255) NOT NULL,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				node_type VARCHAR(255) NOT NULL,
				label VARCHAR(255),
				data JSONB,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				ordinal INTEGER NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE TABLE workflow_edges (
				id VARCHAR(255) NOT NULL,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(255),
				target_handle VARCHAR(255),
				label VARCHAR(255),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_id ON workflow_nodes(workflow_id);
			CREATE INDEX idx_workflow_edges_workflow_id ON workflow_edges(workflow_id);
		`,
	}
}
